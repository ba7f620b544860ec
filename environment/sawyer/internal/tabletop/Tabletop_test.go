package tabletop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newScene(t *testing.T, scene Scene) *Tabletop {
	t.Helper()
	tt, err := New(scene)
	require.NoError(t, err)
	t.Cleanup(func() { tt.Close() })
	return tt
}

func TestNewUnknownScene(t *testing.T) {
	_, err := New(Scene(42))
	assert.Error(t, err)
}

func TestResetPositions(t *testing.T) {
	tests := []struct {
		scene Scene
		obj   r3.Vec
	}{
		{PushScene, r3.Vec{X: 0, Y: 0.6, Z: 0.02}},
		{DrawerScene, r3.Vec{X: 0, Y: 0.74, Z: 0.09}},
		{WindowScene, r3.Vec{X: -0.11, Y: 0.76, Z: 0.16}},
		{BinScene, r3.Vec{X: -0.12, Y: 0.7, Z: 0.02}},
	}

	for _, test := range tests {
		t.Run(test.scene.String(), func(t *testing.T) {
			tt := newScene(t, test.scene)
			tt.Act([4]float64{1, 1, 1, 1})
			tt.Reset()

			assert.InDelta(t, HandInit.X, tt.HandPos().X, 1e-9)
			assert.InDelta(t, HandInit.Y, tt.HandPos().Y, 1e-9)
			assert.InDelta(t, HandInit.Z, tt.HandPos().Z, 1e-9)
			assert.InDelta(t, 1.0, tt.GripperDistance(), 1e-9)

			obj := tt.ObjPos()
			assert.InDelta(t, test.obj.X, obj.X, 1e-6)
			assert.InDelta(t, test.obj.Y, obj.Y, 1e-6)
			assert.InDelta(t, test.obj.Z, obj.Z, 1e-6)
		})
	}
}

func TestHandTracksMocap(t *testing.T) {
	tt := newScene(t, PushScene)
	for i := 0; i < 10; i++ {
		tt.Act([4]float64{1, 0, 0, 0})
	}

	assert.InDelta(t, 0.1, tt.MocapPos().X, 1e-9)
	assert.InDelta(t, 0.1, tt.HandPos().X, 0.015)
	assert.InDelta(t, HandInit.Y, tt.HandPos().Y, 1e-6)
}

func TestMocapClipped(t *testing.T) {
	tt := newScene(t, PushScene)
	tt.SetMocapPos(r3.Vec{X: 10, Y: -10, Z: 10})
	assert.Equal(t, r3.Vec{X: HandHigh.X, Y: HandLow.Y, Z: HandHigh.Z},
		tt.MocapPos())
}

func TestGripper(t *testing.T) {
	tt := newScene(t, PushScene)
	for i := 0; i < 5; i++ {
		tt.Act([4]float64{0, 0, 0, 1})
	}
	assert.InDelta(t, 0.0, tt.GripperDistance(), 1e-9)

	right, left := tt.EndEffectors()
	tcp := tt.TCPCenter()
	assert.InDelta(t, tcp.X, right.X, 1e-9)
	assert.InDelta(t, tcp.X, left.X, 1e-9)
	assert.InDelta(t, tt.HandPos().Z-TCPOffset, tcp.Z, 1e-9)

	for i := 0; i < 5; i++ {
		tt.Act([4]float64{0, 0, 0, -1})
	}
	assert.InDelta(t, 1.0, tt.GripperDistance(), 1e-9)
}

func TestSlideJoints(t *testing.T) {
	tests := []struct {
		scene     Scene
		joint     string
		q         float64
		low, high float64
	}{
		{DrawerScene, "drawer_slide", -0.1, -0.16, 0.0},
		{WindowScene, "window_slide", 0.15, 0.0, 0.2},
	}

	for _, test := range tests {
		t.Run(test.joint, func(t *testing.T) {
			tt := newScene(t, test.scene)
			before := tt.ObjPos()

			require.NoError(t, tt.SetJointQPos(test.joint, test.q))
			q, err := tt.JointQPos(test.joint)
			require.NoError(t, err)
			assert.InDelta(t, test.q, q, 1e-9)

			// Each joint moves along a single world axis
			moved := tt.ObjPos()
			assert.InDelta(t, test.q, (moved.X-before.X)+(moved.Y-before.Y),
				1e-9)

			// The joint holds its position while the hand is away
			for i := 0; i < 10; i++ {
				tt.Act([4]float64{0, 0, 1, 0})
			}
			q, err = tt.JointQPos(test.joint)
			require.NoError(t, err)
			assert.InDelta(t, test.q, q, 1e-6)

			require.NoError(t, tt.SetJointQPos(test.joint, 10))
			q, _ = tt.JointQPos(test.joint)
			assert.InDelta(t, test.high, q, 1e-9)

			require.NoError(t, tt.SetJointQPos(test.joint, -10))
			q, _ = tt.JointQPos(test.joint)
			assert.InDelta(t, test.low, q, 1e-9)
		})
	}
}

func TestDrawerHandle(t *testing.T) {
	tt := newScene(t, DrawerScene)
	require.NoError(t, tt.SetJointQPos("drawer_slide", -0.1))

	link, err := tt.BodyPos("drawer_link")
	require.NoError(t, err)
	handle, err := tt.SitePos("handle")
	require.NoError(t, err)

	assert.InDelta(t, 0.8, link.Y, 1e-9)
	assert.InDelta(t, link.Y-0.16, handle.Y, 1e-9)
	assert.Equal(t, handle, tt.ObjPos())
}

func TestUnknownNames(t *testing.T) {
	tt := newScene(t, PushScene)

	_, err := tt.BodyPos("bin_goal")
	assert.True(t, errors.Is(err, ErrUnknownName))

	_, err = tt.SitePos("handle")
	assert.True(t, errors.Is(err, ErrUnknownName))

	_, err = tt.JointQPos("drawer_slide")
	assert.True(t, errors.Is(err, ErrUnknownName))

	err = tt.SetSitePos("rightEndEffector", r3.Vec{})
	assert.True(t, errors.Is(err, ErrUnknownName))

	_, err = tt.Camera("nope")
	assert.True(t, errors.Is(err, ErrUnknownCamera))
}

func TestSetObjXYZ(t *testing.T) {
	tt := newScene(t, PushScene)
	require.NoError(t, tt.SetObjXYZ(r3.Vec{X: 0.05, Y: 0.8, Z: 0.02}))
	assert.InDelta(t, 0.05, tt.ObjPos().X, 1e-9)
	assert.InDelta(t, 0.8, tt.ObjPos().Y, 1e-9)

	drawer := newScene(t, DrawerScene)
	assert.Error(t, drawer.SetObjXYZ(r3.Vec{}))
}

func TestObjectFallsToTable(t *testing.T) {
	tt := newScene(t, BinScene)
	require.NoError(t, tt.SetObjXYZ(r3.Vec{X: 0.12, Y: 0.7, Z: 0.1}))
	for i := 0; i < 20; i++ {
		tt.Act([4]float64{})
	}
	assert.InDelta(t, 0.02, tt.ObjPos().Z, 1e-9)
}

func TestGraspAndLift(t *testing.T) {
	tt := newScene(t, BinScene)
	obj := tt.ObjPos()

	above := r3.Vec{X: obj.X, Y: obj.Y, Z: 0.2}
	at := r3.Vec{X: obj.X, Y: obj.Y, Z: obj.Z + TCPOffset}
	for i := 0; i < 40; i++ {
		tt.SetMocapPos(above)
		tt.DoSimulation([2]float64{-1, 1}, FrameSkip)
	}
	for i := 0; i < 40; i++ {
		tt.SetMocapPos(at)
		tt.DoSimulation([2]float64{-1, 1}, FrameSkip)
	}
	assert.InDelta(t, obj.X, tt.ObjPos().X, 1e-3)
	assert.InDelta(t, obj.Y, tt.ObjPos().Y, 1e-3)

	for i := 0; i < 10; i++ {
		tt.DoSimulation([2]float64{1, -1}, FrameSkip)
	}
	require.True(t, tt.Held())

	for i := 0; i < 40; i++ {
		tt.SetMocapPos(above)
		tt.DoSimulation([2]float64{1, -1}, FrameSkip)
	}
	assert.Greater(t, tt.ObjPos().Z, 0.1)

	// Opening the gripper drops the block
	for i := 0; i < 40; i++ {
		tt.DoSimulation([2]float64{-1, 1}, FrameSkip)
	}
	assert.False(t, tt.Held())
	assert.InDelta(t, 0.02, tt.ObjPos().Z, 1e-9)
}

// moveHand tracks pos for n environment steps with an open gripper
func moveHand(tt *Tabletop, pos r3.Vec, n int) {
	for i := 0; i < n; i++ {
		tt.SetMocapPos(pos)
		tt.DoSimulation([2]float64{-1, 1}, FrameSkip)
	}
}

func TestHandPushesFromSide(t *testing.T) {
	tt := newScene(t, PushScene)
	obj := tt.ObjPos()

	moveHand(tt, r3.Vec{X: 0.15, Y: obj.Y, Z: 0.2}, 30)
	moveHand(tt, r3.Vec{X: 0.15, Y: obj.Y, Z: 0.05}, 30)
	assert.InDelta(t, obj.X, tt.ObjPos().X, 1e-6)

	moveHand(tt, r3.Vec{X: -0.1, Y: obj.Y, Z: 0.05}, 40)
	assert.Less(t, tt.ObjPos().X, -0.05)
}

func TestHandLoweredOntoObject(t *testing.T) {
	tt := newScene(t, PushScene)
	obj := tt.ObjPos()

	// The hand starts above the puck and passes through it
	moveHand(tt, r3.Vec{X: obj.X, Y: obj.Y, Z: 0.05}, 40)
	assert.False(t, tt.HandContact())
	assert.InDelta(t, obj.X, tt.ObjPos().X, 1e-6)
	assert.InDelta(t, obj.Y, tt.ObjPos().Y, 1e-6)

	// Leaving the puck's footprint restores contacts
	moveHand(tt, r3.Vec{X: 0.15, Y: obj.Y, Z: 0.05}, 40)
	moveHand(tt, r3.Vec{X: -0.1, Y: obj.Y, Z: 0.05}, 40)
	assert.Less(t, tt.ObjPos().X, -0.05)
}

func TestSetHandContact(t *testing.T) {
	tt := newScene(t, PushScene)
	obj := tt.ObjPos()

	moveHand(tt, r3.Vec{X: 0.15, Y: obj.Y, Z: 0.2}, 30)
	moveHand(tt, r3.Vec{X: 0.15, Y: obj.Y, Z: 0.05}, 30)

	tt.SetHandContact(false)
	moveHand(tt, r3.Vec{X: obj.X, Y: obj.Y, Z: 0.05}, 40)
	assert.InDelta(t, obj.X, tt.ObjPos().X, 1e-6)

	// The hand overlaps the puck when contacts return and does not shove
	// it
	tt.SetHandContact(true)
	moveHand(tt, r3.Vec{X: obj.X, Y: obj.Y, Z: 0.05}, 10)
	assert.False(t, tt.HandContact())
	assert.InDelta(t, obj.X, tt.ObjPos().X, 1e-6)

	tt.SetHandContact(false)
	tt.Reset()
	assert.False(t, tt.HandContact())
	moveHand(tt, r3.Vec{X: 0.15, Y: obj.Y, Z: 0.2}, 30)
	moveHand(tt, r3.Vec{X: 0.15, Y: obj.Y, Z: 0.05}, 30)
	moveHand(tt, r3.Vec{X: -0.1, Y: obj.Y, Z: 0.05}, 40)
	assert.Less(t, tt.ObjPos().X, -0.05)
}
