package sawyer

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goalenv/environment/geometry"
	"github.com/samuelfneumann/goalenv/environment/sawyer/internal/tabletop"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gorgonia.org/tensor"
)

// Steps of the scripted bin grasp
const (
	binDescend = 20
	binClose   = 5
	binLift    = 15
)

// Gripper controls used while scripting the hand
var (
	openGripper  = [2]float64{-1, 1}
	closeGripper = [2]float64{1, -1}
	holdGripper  = [2]float64{0, 0}
)

// cameraSetting overrides the intrinsics of a simulator camera. Nil
// fields are left untouched.
type cameraSetting struct {
	fovy    float64
	x, y, z *float64
	quat    *r3.Vec // Euler angles
}

func ptr(v float64) *float64 { return &v }

// cameraSettings returns the camera overrides of an image task
func cameraSettings(kind Kind, startAtObj bool) map[string]cameraSetting {
	switch kind {
	case Push:
		return map[string]cameraSetting{
			"corner": {fovy: 20, x: ptr(-1.0), z: ptr(0.5)},
			"corner2": {fovy: 45, x: ptr(0.7), y: ptr(0.65), z: ptr(0.1),
				quat: &r3.Vec{X: -math.Pi / 2, Y: math.Pi / 2}},
		}

	case Drawer:
		return map[string]cameraSetting{
			"behindGripper": {fovy: 30},
			"topview":       {fovy: 20, y: ptr(0.7)},
			"corner2":       {fovy: 8, x: ptr(1.5), y: ptr(-0.2), z: ptr(1.1)},
			"corner3":       {fovy: 30, x: ptr(0.3), y: ptr(0.45), z: ptr(0.7)},
		}

	case Window:
		if startAtObj {
			return map[string]cameraSetting{
				"corner2": {fovy: 10, x: ptr(1.5), y: ptr(-0.1), z: ptr(1.1)},
			}
		}
		return map[string]cameraSetting{
			"corner2": {fovy: 17, y: ptr(-0.1), z: ptr(1.1)},
		}

	case Bin:
		return map[string]cameraSetting{
			"corner2": {fovy: 14, x: ptr(1.3), y: ptr(-0.05), z: ptr(0.9)},
			"topview": {y: ptr(0.7), z: ptr(0.9)},
		}
	}
	return nil
}

// configureCameras applies the camera overrides of an image task
func (e *Env) configureCameras() error {
	for name, s := range cameraSettings(e.kind, e.params.StartAtObj) {
		c, err := e.sim.Camera(name)
		if err != nil {
			return fmt.Errorf("configureCameras: %w", err)
		}

		if s.fovy != 0 {
			c.Fovy = s.fovy
		}
		if s.x != nil {
			c.Pos.X = *s.x
		}
		if s.y != nil {
			c.Pos.Y = *s.y
		}
		if s.z != nil {
			c.Pos.Z = *s.z
		}
		if s.quat != nil {
			c.Quat = geometry.EulerToQuat(*s.quat)
		}
	}
	return nil
}

// resetImage captures a goal image of the task solved, then resets the
// task to its start configuration
func (e *Env) resetImage() error {
	if err := e.configureCameras(); err != nil {
		return err
	}

	var err error
	switch e.kind {
	case Push:
		err = e.resetPushImage()
	case Drawer:
		err = e.resetDrawerImage()
	case Window:
		err = e.resetWindowImage()
	case Bin:
		err = e.resetBinImage()
	}
	return err
}

// simulate runs n scripted environment steps, calling track before each
// one. The scripted hand does not collide with the task object.
func (e *Env) simulate(n int, ctrl func(i int) [2]float64,
	track func(i int) error) error {
	e.sim.SetHandContact(false)
	defer e.sim.SetHandContact(true)

	for i := 0; i < n; i++ {
		if track != nil {
			if err := track(i); err != nil {
				return err
			}
		}
		e.sim.DoSimulation(ctrl(i), tabletop.FrameSkip)
	}
	return nil
}

func constant(ctrl [2]float64) func(int) [2]float64 {
	return func(int) [2]float64 { return ctrl }
}

func (e *Env) resetPushImage() error {
	if err := e.resetState(); err != nil {
		return err
	}

	obj := e.sim.ObjPos()
	goal := geometry.Add(obj, r3.Vec{Y: e.rng.uniform(0, 0.25)})
	if e.params.RandY {
		goal.X += e.rng.uniform(-0.1, 0.1)
	}
	if e.task != nil {
		goal = e.target
	}

	if err := e.sim.SetObjXYZ(goal); err != nil {
		return err
	}
	err := e.simulate(200, constant(openGripper), func(int) error {
		e.sim.SetMocapPos(e.sim.ObjPos())
		return e.sim.SetObjXYZ(goal)
	})
	if err != nil {
		return err
	}
	e.goal = e.sim.ObjPos()
	if e.goalImg, err = e.image(); err != nil {
		return err
	}

	if err := e.resetState(); err != nil {
		return err
	}
	start := e.sim.ObjPos()
	if e.task == nil {
		start.Y -= 0.2
	}
	if err := e.sim.SetObjXYZ(start); err != nil {
		return err
	}
	e.sim.DoSimulation(openGripper, tabletop.FrameSkip)

	if e.params.StartAtObj {
		err := e.simulate(20, constant(openGripper), func(int) error {
			e.sim.SetMocapPos(e.sim.ObjPos())
			return nil
		})
		if err != nil {
			return err
		}
	}
	e.target = e.goal
	return nil
}

// moveHandToHandle drives the open gripper onto the drawer handle
func (e *Env) moveHandToHandle() error {
	return e.simulate(20, constant(openGripper), func(int) error {
		e.sim.SetMocapPos(geometry.Add(e.sim.ObjPos(),
			r3.Vec{Z: tabletop.TCPOffset}))
		return nil
	})
}

// startSlide returns the start joint position of an image drawer or
// window task
func (e *Env) startSlide(open, closed float64) float64 {
	if e.task != nil {
		return e.task.Params[1]
	}
	switch e.params.Task {
	case TaskOpen:
		return open
	case TaskClose:
		return closed
	default:
		if e.rng.mode.Choose() == 0 {
			return open
		}
		return closed
	}
}

func (e *Env) resetDrawerImage() error {
	if err := e.resetState(); err != nil {
		return err
	}
	if e.task != nil {
		if err := e.sim.SetJointQPos(drawerJoint, e.task.Params[0]); err != nil {
			return err
		}
	}
	if err := e.moveHandToHandle(); err != nil {
		return err
	}
	target := e.sim.ObjPos()
	e.goalCoord = target.Y

	var err error
	if e.goalImg, err = e.image(); err != nil {
		return err
	}

	// Opening starts from a closed drawer and closing from an open one
	if err := e.resetState(); err != nil {
		return err
	}
	if err := e.sim.SetJointQPos(drawerJoint, e.startSlide(0.0,
		-0.15)); err != nil {
		return err
	}
	if err := e.moveHandToHandle(); err != nil {
		return err
	}
	e.target = target
	return nil
}

func (e *Env) resetWindowImage() error {
	if err := e.resetState(); err != nil {
		return err
	}

	goal := e.rng.uniform(0, 0.2)
	if e.task != nil {
		goal = e.task.Params[0]
	}
	err := e.simulate(20, constant(openGripper), func(int) error {
		e.sim.SetMocapPos(e.sim.ObjPos())
		return e.sim.SetJointQPos(windowJoint, goal)
	})
	if err != nil {
		return err
	}
	e.goalCoord = goal
	target := e.sim.ObjPos()
	if e.goalImg, err = e.image(); err != nil {
		return err
	}

	if err := e.resetState(); err != nil {
		return err
	}
	start := e.startSlide(0.0, 0.2)
	if e.params.StartAtObj {
		err = e.simulate(50, constant(openGripper), func(int) error {
			e.sim.SetMocapPos(e.sim.ObjPos())
			return e.sim.SetJointQPos(windowJoint, start)
		})
		if err != nil {
			return err
		}
	} else {
		if err := e.sim.SetJointQPos(windowJoint, start); err != nil {
			return err
		}
		e.sim.DoSimulation(openGripper, tabletop.FrameSkip)
	}
	e.target = target
	return nil
}

func (e *Env) resetBinImage() error {
	if err := e.resetState(); err != nil {
		return err
	}

	bin, err := e.sim.BodyPos(binGoal)
	if err != nil {
		return err
	}
	obj := r3.Vec{
		X: bin.X + e.rng.uniform(-0.05, 0.05),
		Y: bin.Y + e.rng.uniform(-0.05, 0.05),
	}
	if e.task != nil {
		obj = r3.Vec{X: e.task.Params[2], Y: e.task.Params[3]}
	}
	obj.Z = 0.05
	if err := e.sim.SetObjXYZ(obj); err != nil {
		return err
	}

	// Lower the open gripper around the block, close it and lift the
	// block
	lift := r3.Vec{Z: tabletop.TCPOffset + e.rng.uniform(0, 0.05)}
	var at r3.Vec
	grasp := func(i int) [2]float64 {
		if i < binDescend {
			return openGripper
		}
		return closeGripper
	}
	err = e.simulate(binDescend+binClose+binLift, grasp, func(i int) error {
		switch {
		case i < binDescend:
			at = geometry.Add(e.sim.ObjPos(), r3.Vec{Z: tabletop.TCPOffset})
			e.sim.SetMocapPos(at)
		case i >= binDescend+binClose:
			e.sim.SetMocapPos(geometry.Add(at, lift))
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.goal = e.sim.ObjPos()
	if e.goalImg, err = e.image(); err != nil {
		return err
	}

	if err := e.resetState(); err != nil {
		return err
	}
	if e.params.StartAtObj {
		above := geometry.Add(e.sim.ObjPos(), r3.Vec{Z: 0.05})
		err := e.simulate(40, constant(holdGripper), func(int) error {
			e.sim.SetMocapPos(above)
			return nil
		})
		if err != nil {
			return err
		}
	}
	e.target = e.goal
	return nil
}

// image renders the current scene from the task camera with the goal
// marker hidden
func (e *Env) image() (*tensor.Dense, error) {
	if err := e.sim.SetSiteVisible("goal", false); err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	img, err := e.sim.Render(e.camera, ImageSize, ImageSize)
	if err := e.sim.SetSiteVisible("goal", true); err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	if contains(flipped[e.kind], e.camera) {
		return flipVertical(img)
	}
	return img, nil
}

// flipVertical returns a copy of an (h, w, c) uint8 image with its rows
// in reverse order
func flipVertical(img *tensor.Dense) (*tensor.Dense, error) {
	shape := img.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("flipVertical: expected an (h, w, c) image "+
			"but got shape %v", shape)
	}
	data, ok := img.Data().([]uint8)
	if !ok {
		return nil, fmt.Errorf("flipVertical: expected uint8 data but got "+
			"%T", img.Data())
	}

	h, row := shape[0], shape[1]*shape[2]
	out := make([]uint8, len(data))
	for r := 0; r < h; r++ {
		copy(out[r*row:(r+1)*row], data[(h-1-r)*row:(h-r)*row])
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(out)),
		nil
}

// concatChannels stacks the current and goal images along the channel
// axis
func concatChannels(img, goal *tensor.Dense) (*tensor.Dense, error) {
	if goal == nil {
		return nil, fmt.Errorf("concatChannels: no goal image")
	}
	out, err := img.Concat(2, goal)
	if err != nil {
		return nil, fmt.Errorf("concatChannels: %w", err)
	}
	return out, nil
}

// flatten returns the values of a uint8 tensor in row-major order
func flatten(img *tensor.Dense) *mat.VecDense {
	data := img.Data().([]uint8)
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return mat.NewVecDense(len(out), out)
}
