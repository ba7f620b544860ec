package tabletop

import (
	"math"

	"github.com/samuelfneumann/goalenv/environment/geometry"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// nearPlane is the closest depth a camera renders
const nearPlane = 0.01

// Camera is a pinhole camera looking down its local -z axis with +y up
type Camera struct {
	Name string

	// Fovy is the vertical field of view in degrees
	Fovy float64
	Pos  r3.Vec
	Quat quat.Number

	// Mounted cameras are positioned and oriented relative to the hand
	Mounted bool
}

// pose returns the world position and orientation of the camera
func (c *Camera) pose(hand r3.Vec) (r3.Vec, quat.Number) {
	if c.Mounted {
		return geometry.Add(hand, c.Pos), c.Quat
	}
	return c.Pos, c.Quat
}

var up = r3.Vec{Z: 1}

// defaultCameras returns the cameras of a scene, each aimed at the task
// object
func defaultCameras(scene Scene) map[string]*Camera {
	var focus, corner2 r3.Vec
	switch scene {
	case DrawerScene:
		focus = r3.Vec{X: 0, Y: 0.74, Z: 0.09}
		corner2 = r3.Vec{X: 1.5, Y: -0.2, Z: 1.1}
	case WindowScene:
		focus = r3.Vec{X: 0, Y: 0.78, Z: 0.17}
		corner2 = r3.Vec{X: 1.5, Y: -0.1, Z: 1.1}
	case BinScene:
		focus = r3.Vec{X: 0, Y: 0.7, Z: 0.02}
		corner2 = r3.Vec{X: 1.3, Y: -0.05, Z: 0.9}
	default:
		focus = r3.Vec{X: 0, Y: 0.7, Z: 0.02}
		corner2 = r3.Vec{X: 1.3, Y: -0.2, Z: 1.1}
	}

	corner := r3.Vec{X: -1.1, Y: -0.4, Z: 0.6}
	corner3 := r3.Vec{X: 0.3, Y: 0.45, Z: 0.7}
	topview := r3.Vec{X: 0, Y: 0.6, Z: 1.0}

	// Mounted behind the gripper, upside down
	behind := r3.Vec{X: 0, Y: -0.12, Z: 0.12}
	behindTarget := r3.Vec{X: 0, Y: 0.15, Z: -0.15}

	return map[string]*Camera{
		"corner": {
			Name: "corner",
			Fovy: 45,
			Pos:  corner,
			Quat: geometry.LookAt(r3.Vec{X: -1.0, Y: -0.4, Z: 0.5}, focus, up),
		},
		"corner2": {
			Name: "corner2",
			Fovy: 45,
			Pos:  corner2,
			Quat: geometry.LookAt(corner2, focus, up),
		},
		"corner3": {
			Name: "corner3",
			Fovy: 45,
			Pos:  corner3,
			Quat: geometry.LookAt(corner3, focus, up),
		},
		"topview": {
			Name: "topview",
			Fovy: 45,
			Pos:  topview,
			Quat: geometry.LookAt(topview, r3.Vec{X: 0, Y: 0.6},
				r3.Vec{Y: 1}),
		},
		"behindGripper": {
			Name:    "behindGripper",
			Fovy:    60,
			Pos:     behind,
			Quat:    geometry.LookAt(behind, behindTarget, r3.Vec{Z: -1}),
			Mounted: true,
		},
	}
}

// projector maps world points to pixel coordinates for one render
type projector struct {
	pos    r3.Vec
	quat   quat.Number
	f      float64
	cx, cy float64
}

func newProjector(c *Camera, hand r3.Vec, height, width int) projector {
	pos, q := c.pose(hand)
	return projector{
		pos:  pos,
		quat: geometry.Normalize(q),
		f:    float64(height) / 2 / math.Tan(c.Fovy*math.Pi/360),
		cx:   float64(width) / 2,
		cy:   float64(height) / 2,
	}
}

// toCamera returns p in the camera frame
func (p projector) toCamera(v r3.Vec) r3.Vec {
	return geometry.InverseRotate(p.quat, geometry.Sub(v, p.pos))
}

// toPixel projects a point in the camera frame. The point must lie in
// front of the near plane.
func (p projector) toPixel(c r3.Vec) (x, y float64) {
	depth := -c.Z
	return p.cx + p.f*c.X/depth, p.cy - p.f*c.Y/depth
}
