package sawyer

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/environment/geometry"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	drawerJoint = "drawer_slide"
	windowJoint = "window_slide"
	binGoal     = "bin_goal"

	// minPushSeparation is the smallest x-y distance between the puck
	// and its goal at the start of an episode
	minPushSeparation = 0.15
	maxResamples      = 1000
)

// samplers holds the random number generators of an Env
type samplers struct {
	obj  *environment.UniformStarter
	goal *environment.UniformStarter
	mode *environment.CategoricalStarter
	unit distuv.Uniform
}

func newSamplers(kind Kind, p Params) *samplers {
	var obj, goal []r1.Interval
	switch kind {
	case Push:
		obj = []r1.Interval{{Min: -0.1, Max: 0.1}, {Min: 0.6, Max: 0.7}}
		goal = []r1.Interval{
			{Min: p.GoalMinX, Max: p.GoalMaxX},
			{Min: p.GoalMinY, Max: p.GoalMaxY},
			{Min: 0.01, Max: 0.02},
		}
	case Bin:
		obj = []r1.Interval{{Min: -0.17, Max: -0.07}, {Min: 0.65, Max: 0.75}}
		goal = []r1.Interval{
			{Min: -0.05, Max: 0.05},
			{Min: -0.05, Max: 0.05},
			{Min: -0.05, Max: 0.05},
		}
	default:
		// Slide joint positions are drawn from unit
		obj = []r1.Interval{{Min: 0, Max: 0}}
		goal = []r1.Interval{{Min: 0, Max: 0}}
	}

	s := &samplers{
		obj:  environment.NewUniformStarter(obj, p.Seed),
		goal: environment.NewUniformStarter(goal, p.Seed+1),
		mode: environment.NewCategoricalStarter([]int{2}, p.Seed+2),
	}
	s.unit = distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(p.Seed + 3)}
	return s
}

func (s *samplers) seed(seed uint64) {
	s.obj.Seed(seed)
	s.goal.Seed(seed + 1)
	s.mode.Seed(seed + 2)
	s.unit.Src = rand.NewSource(seed + 3)
}

// uniform samples uniformly from [low, high)
func (s *samplers) uniform(low, high float64) float64 {
	return low + (high-low)*s.unit.Rand()
}

// taskParams returns the number of Task parameters of a kind
func taskParams(kind Kind) int {
	switch kind {
	case Drawer, Window:
		return 2
	default:
		return 5
	}
}

func vec(v *mat.VecDense) r3.Vec {
	r := r3.Vec{X: v.AtVec(0), Y: v.AtVec(1)}
	if v.Len() > 2 {
		r.Z = v.AtVec(2)
	}
	return r
}

// joint returns the slide joint of the drawer and window
func (e *Env) joint() string {
	if e.kind == Drawer {
		return drawerJoint
	}
	return windowJoint
}

// slideRange returns the range slide positions are sampled from
func (e *Env) slideRange() (low, high float64) {
	if e.kind == Drawer {
		return -0.15, 0.0
	}
	return 0.0, 0.2
}

// resetState resets the simulator, samples a goal and places the task
// object at a random start
func (e *Env) resetState() error {
	e.sim.Reset()

	switch e.kind {
	case Push:
		obj, goal := e.samplePush()
		if err := e.sim.SetObjXYZ(obj); err != nil {
			return err
		}
		e.target = goal

	case Drawer, Window:
		low, high := e.slideRange()
		q1, q2 := e.rng.uniform(low, high), e.rng.uniform(low, high)
		if e.task != nil {
			q1, q2 = e.task.Params[0], e.task.Params[1]
		}

		if err := e.sim.SetJointQPos(e.joint(), q1); err != nil {
			return err
		}
		e.target = e.sim.ObjPos()
		if err := e.sim.SetJointQPos(e.joint(), q2); err != nil {
			return err
		}

	case Bin:
		obj := vec(e.rng.obj.Start())
		if e.task != nil {
			obj = r3.Vec{X: e.task.Params[0], Y: e.task.Params[1]}
		}
		if err := e.sim.SetObjXYZ(obj); err != nil {
			return err
		}

		if e.task != nil {
			p := e.task.Params
			e.target = r3.Vec{X: p[2], Y: p[3], Z: p[4]}
			break
		}
		bin, err := e.sim.BodyPos(binGoal)
		if err != nil {
			return err
		}
		near := geometry.Add(bin, vec(e.rng.goal.Start()))
		goal := geometry.Lerp(e.rng.unit.Rand(), near, e.sim.ObjPos())
		goal.Z = e.rng.uniform(0.03, 0.12)
		e.target = goal
	}
	return nil
}

// samplePush samples the puck start and goal, resampling until they are
// far enough apart
func (e *Env) samplePush() (obj, goal r3.Vec) {
	if e.task != nil {
		p := e.task.Params
		return r3.Vec{X: p[0], Y: p[1]}, r3.Vec{X: p[2], Y: p[3], Z: p[4]}
	}

	for i := 0; i < maxResamples; i++ {
		obj, goal = vec(e.rng.obj.Start()), vec(e.rng.goal.Start())
		if geometry.Distance2D(obj, goal) >= minPushSeparation {
			break
		}
	}
	return obj, goal
}

// state returns the compact state of the current configuration
func (e *Env) state() *mat.VecDense {
	var s []float64
	switch e.kind {
	case Push:
		s = append(s, geometry.Slice(e.sim.TCPCenter())...)
		s = append(s, geometry.Slice(e.sim.ObjPos())...)
		s = append(s, e.sim.GripperDistance())
		s = append(s, geometry.Slice(e.target)...)
		s = append(s, geometry.Slice(e.target)...)
		s = append(s, 0.5)

	case Drawer:
		s = append(s, geometry.Slice(e.sim.TCPCenter())...)
		s = append(s, e.sim.ObjPos().Y)
		s = append(s, geometry.Slice(e.target)...)
		s = append(s, e.target.Y)

	case Window:
		s = append(s, geometry.Slice(e.sim.TCPCenter())...)
		s = append(s, e.sim.ObjPos().X)
		s = append(s, geometry.Slice(e.target)...)
		s = append(s, e.target.X)

	case Bin:
		s = append(s, geometry.Slice(e.sim.HandPos())...)
		s = append(s, e.sim.GripperDistance())
		s = append(s, geometry.Slice(e.sim.ObjPos())...)
		s = append(s, geometry.Slice(geometry.Add(e.target,
			r3.Vec{Z: 0.03}))...)
		s = append(s, 0.4)
		s = append(s, geometry.Slice(e.target)...)
	}
	return mat.NewVecDense(len(s), s)
}

// distance returns the task distance between the object and the goal
func (e *Env) distance() (float64, error) {
	obj := e.sim.ObjPos()

	if !e.params.Image {
		switch e.kind {
		case Drawer:
			return math.Abs(obj.Y - e.target.Y), nil
		case Window:
			return math.Abs(obj.X - e.target.X), nil
		default:
			return geometry.Distance(obj, e.target), nil
		}
	}

	switch e.kind {
	case Push:
		return geometry.Distance(obj, e.goal), nil
	case Drawer:
		return math.Abs(obj.Y - e.goalCoord), nil
	case Window:
		q, err := e.sim.JointQPos(windowJoint)
		if err != nil {
			return 0, err
		}
		return math.Abs(q - e.goalCoord), nil
	case Bin:
		return geometry.Distance2D(obj, e.goal), nil
	default:
		return 0, fmt.Errorf("distance: unknown task kind %v", e.kind)
	}
}
