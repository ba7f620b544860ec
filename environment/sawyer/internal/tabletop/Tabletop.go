// Package tabletop implements a small tabletop manipulation simulator: a
// mocap-driven two-finger gripper above a table holding a single task
// object.
//
// Motion in the plane of the table is simulated with Box2D. Heights are
// tracked analytically: objects rest on the table unless the gripper
// holds them, and the gripper only touches objects whose vertical extent
// it overlaps. All positions exposed by the package are in metres.
package tabletop

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/ByteArena/box2d"
	"github.com/samuelfneumann/goalenv/environment/geometry"
	"github.com/samuelfneumann/goalenv/utils/floatutils"
	"gonum.org/v1/gonum/spatial/r3"
)

// Scene selects the task object placed on the table
type Scene int

const (
	// PushScene holds a puck resting on the table
	PushScene Scene = iota

	// DrawerScene holds a cabinet with a sliding drawer
	DrawerScene

	// WindowScene holds a window frame with a sliding sash
	WindowScene

	// BinScene holds a graspable block and two bins
	BinScene
)

func (s Scene) String() string {
	switch s {
	case PushScene:
		return "push"
	case DrawerScene:
		return "drawer"
	case WindowScene:
		return "window"
	case BinScene:
		return "bin"
	default:
		return fmt.Sprintf("Scene(%d)", int(s))
	}
}

const (
	// Scale converts metres to Box2D world units
	Scale = 10.0

	// Timestep is the duration of a single physics step in seconds
	Timestep = 0.0025

	// FrameSkip is the number of physics steps per environment step
	FrameSkip = 5

	// ActionScale converts a unit action to a mocap displacement
	ActionScale = 1.0 / 100

	// TCPOffset is the height of the hand body above the tool centre
	TCPOffset = 0.03

	// FingerSpread is the distance between the fingers when fully open
	FingerSpread = 0.1

	velocityIterations = 8
	positionIterations = 3

	trackTime    = 4 * Timestep
	maxHandSpeed = 2.0
	gripRate     = 0.1
	graspClose   = 0.6
	graspOpen    = 0.7
	graspRadius  = 0.035
	gravity      = 9.81
	wallHeight   = 0.05
	fingerDepth  = 0.015

	fingerHalfWidth = 0.006
	handleHalfWidth = 0.02
)

// Collision categories
const (
	catHand uint16 = 1 << (iota + 1)
	catObject
	catWall
)

var (
	// HandLow is the lower bound of the mocap target
	HandLow = r3.Vec{X: -0.5, Y: 0.40, Z: 0.05}

	// HandHigh is the upper bound of the mocap target
	HandHigh = r3.Vec{X: 0.5, Y: 1.0, Z: 0.5}

	// HandInit is the hand position after a reset
	HandInit = r3.Vec{X: 0, Y: 0.6, Z: 0.2}
)

// part is a movable body on the table
type part struct {
	name     string
	body     *box2d.B2Body
	fixtures []*box2d.B2Fixture
	mask     uint16

	// Height of the centre above the table and its vertical velocity
	z, vz float64

	half    r3.Vec
	radius  float64
	initial r3.Vec

	// grasp is the grasp point relative to the centre
	grasp  r3.Vec
	slide  *slide
	colour color.RGBA
}

// slide constrains a part to a line segment
type slide struct {
	joint     string
	origin    r3.Vec
	axis      r3.Vec
	low, high float64
}

// slab is a static axis-aligned box
type slab struct {
	centre r3.Vec
	half   r3.Vec
	colour color.RGBA
}

// site is a named marker
type site struct {
	pos     r3.Vec
	radius  float64
	colour  color.RGBA
	visible bool
}

// Tabletop is a single simulated scene
type Tabletop struct {
	scene  Scene
	world  box2d.B2World
	ground *box2d.B2Body

	hand     *box2d.B2Body
	handFix  []*box2d.B2Fixture
	handMask uint16
	handZ    float64
	mocap    r3.Vec
	aperture float64

	obj        *part
	held       bool
	heldOffset r3.Vec

	// noContact disables hand-object contacts. inside is set while the
	// hand sits within the footprint of the object it was lowered onto.
	noContact bool
	inside    bool

	slabs    []slab
	walls    *box2d.B2Body
	goal     site
	goalInit r3.Vec
	bins     map[string]r3.Vec

	cameras map[string]*Camera
	context *RenderContext
}

// New returns a new Tabletop holding the objects of scene
func New(scene Scene) (*Tabletop, error) {
	t := &Tabletop{
		scene:   scene,
		world:   box2d.MakeB2World(box2d.MakeB2Vec2(0, 0)),
		bins:    make(map[string]r3.Vec),
		context: &RenderContext{},
	}

	groundDef := box2d.MakeB2BodyDef()
	groundDef.Type = box2d.B2BodyType.B2_staticBody
	t.ground = t.world.CreateBody(&groundDef)

	t.createHand()
	switch scene {
	case PushScene:
		t.createPush()
	case DrawerScene:
		t.createDrawer()
	case WindowScene:
		t.createWindow()
	case BinScene:
		t.createBin()
	default:
		return nil, fmt.Errorf("new: unknown scene %v", scene)
	}

	t.cameras = defaultCameras(scene)
	t.Reset()
	return t, nil
}

// Scene returns the scene simulated
func (t *Tabletop) Scene() Scene {
	return t.scene
}

// Reset moves the hand, gripper and task object back to their initial
// configuration and re-enables hand contacts. Camera parameters are left
// untouched.
func (t *Tabletop) Reset() {
	t.hand.SetTransform(box2d.MakeB2Vec2(HandInit.X*Scale, HandInit.Y*Scale),
		0)
	t.hand.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
	t.handZ = HandInit.Z
	t.mocap = HandInit
	t.aperture = 1.0
	t.held = false
	t.noContact = false
	t.inside = false

	t.place(t.obj, t.obj.initial)
	t.goal.pos = t.goalInit
	t.goal.visible = true
	t.updateFilters()
}

// Act applies an action [dx, dy, dz, grip] in [-1, 1]. The mocap target
// is displaced by the scaled position action and the simulation is run
// for FrameSkip physics steps. Positive grip closes the gripper.
func (t *Tabletop) Act(action [4]float64) {
	for i := range action {
		action[i] = floatutils.Clip(action[i], -1, 1)
	}
	delta := r3.Vec{X: action[0], Y: action[1], Z: action[2]}
	t.SetMocapPos(geometry.Add(t.mocap, geometry.Scale(ActionScale, delta)))
	t.DoSimulation([2]float64{action[3], -action[3]}, FrameSkip)
}

// DoSimulation runs nFrames physics steps with the finger controls ctrl
func (t *Tabletop) DoSimulation(ctrl [2]float64, nFrames int) {
	grip := (ctrl[0] - ctrl[1]) / 2
	for i := 0; i < nFrames; i++ {
		t.substep(grip)
	}
}

func (t *Tabletop) substep(grip float64) {
	prev := t.aperture
	t.aperture = floatutils.Clip(t.aperture-gripRate*grip, 0, 1)

	// Closing fingers grasp an object between them
	tcp := t.TCPCenter()
	closing := t.aperture < prev
	if !t.held && closing && t.aperture < graspClose && t.canGrasp(tcp) {
		t.held = true
		t.heldOffset = geometry.Sub(t.centre(t.obj), tcp)
	} else if t.held && t.aperture > graspOpen {
		t.held = false
	}

	// The hand tracks the mocap target
	hand := t.HandPos()
	v := geometry.Scale(1/trackTime, geometry.Sub(t.mocap, hand))
	if n := geometry.Norm(v); n > maxHandSpeed {
		v = geometry.Scale(maxHandSpeed/n, v)
	}
	t.hand.SetLinearVelocity(box2d.MakeB2Vec2(v.X*Scale, v.Y*Scale))
	t.handZ += v.Z * Timestep

	if t.held && t.obj.slide != nil {
		t.drag(t.obj, geometry.Add(tcp, t.heldOffset))
	}

	t.updateFilters()
	t.world.Step(Timestep, velocityIterations, positionIterations)
	t.settle()
}

// drag drives a sliding part towards target along its axis
func (t *Tabletop) drag(p *part, target r3.Vec) {
	d := geometry.Dot(geometry.Sub(target, t.centre(p)), p.slide.axis)
	speed := floatutils.Clip(d/trackTime, -maxHandSpeed, maxHandSpeed)
	v := geometry.Scale(speed*Scale, p.slide.axis)
	p.body.SetLinearVelocity(box2d.MakeB2Vec2(v.X, v.Y))
	p.body.SetAwake(true)
}

// settle projects parts back onto their constraints after a physics step
func (t *Tabletop) settle() {
	p := t.obj
	switch {
	case p.slide != nil:
		s := p.slide
		q := t.qpos(p)
		clipped := floatutils.Clip(q, s.low, s.high)

		v := p.body.GetLinearVelocity()
		along := v.X*s.axis.X + v.Y*s.axis.Y
		if (clipped == s.low && along < 0) || (clipped == s.high && along > 0) {
			along = 0
		}

		pos := geometry.Add(s.origin, geometry.Scale(clipped, s.axis))
		p.body.SetTransform(box2d.MakeB2Vec2(pos.X*Scale, pos.Y*Scale), 0)
		p.body.SetLinearVelocity(box2d.MakeB2Vec2(along*s.axis.X,
			along*s.axis.Y))

	case t.held:
		pos := geometry.Add(t.TCPCenter(), t.heldOffset)
		pos.Z = math.Max(pos.Z, p.half.Z)
		t.place(p, pos)

	case p.z > p.half.Z || p.vz != 0:
		p.vz -= gravity * Timestep
		p.z += p.vz * Timestep
		if p.z <= p.half.Z {
			p.z = p.half.Z
			p.vz = 0
		}
	}
}

func (t *Tabletop) canGrasp(tcp r3.Vec) bool {
	g := geometry.Add(t.centre(t.obj), t.obj.grasp)
	return geometry.Distance2D(g, tcp) < graspRadius &&
		math.Abs(g.Z-tcp.Z) < graspRadius
}

// SetHandContact enables or disables contacts between the hand and the
// task object. A hand that overlaps the object when contacts are
// enabled again passes through it until it leaves the object's
// footprint.
func (t *Tabletop) SetHandContact(enabled bool) {
	t.noContact = !enabled
	t.updateFilters()
}

// HandContact returns whether the hand currently collides with the task
// object
func (t *Tabletop) HandContact() bool {
	return t.handMask != 0
}

// updateFilters enables hand-object contacts only when their vertical
// extents overlap and the hand approaches the object from the side, and
// object-wall contacts only below the wall tops
func (t *Tabletop) updateFilters() {
	p := t.obj
	tcp := t.TCPCenter()

	vertical := tcp.Z-fingerDepth < p.z+p.half.Z && t.handZ > p.z-p.half.Z
	footprint := t.overlaps()
	if t.noContact {
		t.inside = footprint
	} else {
		t.inside = footprint && (t.inside || !vertical)
	}

	var handMask uint16
	if !t.noContact && !t.held && vertical && !t.inside &&
		!t.straddles(tcp) {
		handMask = catObject
	}
	objMask := catHand
	if p.z-p.half.Z < wallHeight {
		objMask |= catWall
	}

	setMask(t.handFix, &t.handMask, handMask)
	setMask(p.fixtures, &p.mask, objMask)
}

// straddles returns whether the open fingers surround the grasp point,
// in which case the hand passes around the object
func (t *Tabletop) straddles(tcp r3.Vec) bool {
	g := t.ObjPos()
	width := math.Min(t.obj.half.X, handleHalfWidth)
	gap := FingerSpread/2*t.aperture - fingerHalfWidth
	return math.Abs(g.X-tcp.X)+width < gap && math.Abs(g.Y-tcp.Y) < graspRadius
}

// overlaps returns whether the footprints of the hand and the task object
// overlap in the plane of the table
func (t *Tabletop) overlaps() bool {
	hand, obj := t.hand.GetTransform(), t.obj.body.GetTransform()
	for _, h := range t.handFix {
		for _, o := range t.obj.fixtures {
			if box2d.B2TestOverlapShapes(h.GetShape(), 0, o.GetShape(), 0,
				hand, obj) {
				return true
			}
		}
	}
	return false
}

func setMask(fixtures []*box2d.B2Fixture, current *uint16, mask uint16) {
	if *current == mask {
		return
	}
	*current = mask
	for _, f := range fixtures {
		filter := f.GetFilterData()
		filter.MaskBits = mask
		f.SetFilterData(filter)
	}
}

// place teleports a part, zeroing its velocity
func (t *Tabletop) place(p *part, pos r3.Vec) {
	p.body.SetTransform(box2d.MakeB2Vec2(pos.X*Scale, pos.Y*Scale), 0)
	p.body.SetLinearVelocity(box2d.MakeB2Vec2(0, 0))
	p.body.SetAwake(true)
	p.z = pos.Z
	p.vz = 0
}

func (t *Tabletop) centre(p *part) r3.Vec {
	b := p.body.GetPosition()
	return r3.Vec{X: b.X / Scale, Y: b.Y / Scale, Z: p.z}
}

func (t *Tabletop) qpos(p *part) float64 {
	return geometry.Dot(geometry.Sub(t.centre(p), p.slide.origin),
		p.slide.axis)
}

// HandPos returns the position of the hand body
func (t *Tabletop) HandPos() r3.Vec {
	b := t.hand.GetPosition()
	return r3.Vec{X: b.X / Scale, Y: b.Y / Scale, Z: t.handZ}
}

// MocapPos returns the position the hand is tracking
func (t *Tabletop) MocapPos() r3.Vec {
	return t.mocap
}

// SetMocapPos sets the position the hand tracks, clipped to the hand
// bounds
func (t *Tabletop) SetMocapPos(pos r3.Vec) {
	t.mocap = geometry.Clamp(pos, HandLow, HandHigh)
}

// TCPCenter returns the tool centre point between the fingers
func (t *Tabletop) TCPCenter() r3.Vec {
	right, left := t.EndEffectors()
	return geometry.Scale(0.5, geometry.Add(right, left))
}

// EndEffectors returns the right and left finger positions
func (t *Tabletop) EndEffectors() (right, left r3.Vec) {
	c := geometry.Sub(t.HandPos(), r3.Vec{Z: TCPOffset})
	d := r3.Vec{X: FingerSpread / 2 * t.aperture}
	return geometry.Add(c, d), geometry.Sub(c, d)
}

// GripperDistance returns the normalized distance between the fingers
// in [0, 1]
func (t *Tabletop) GripperDistance() float64 {
	right, left := t.EndEffectors()
	return floatutils.Clip(geometry.Distance(right, left)/FingerSpread, 0, 1)
}

// Held returns whether the gripper holds the task object
func (t *Tabletop) Held() bool {
	return t.held
}

// ObjPos returns the point of interest of the task object: the puck or
// block centre, or the drawer or window handle
func (t *Tabletop) ObjPos() r3.Vec {
	return geometry.Add(t.centre(t.obj), t.obj.grasp)
}

// BodyPos returns the position of a named body
func (t *Tabletop) BodyPos(name string) (r3.Vec, error) {
	if name == "hand" {
		return t.HandPos(), nil
	}
	if name == t.obj.name {
		return t.centre(t.obj), nil
	}
	if pos, ok := t.bins[name]; ok {
		return pos, nil
	}
	return r3.Vec{}, unknown("bodyPos", "body", name)
}

// SitePos returns the position of a named site
func (t *Tabletop) SitePos(name string) (r3.Vec, error) {
	right, left := t.EndEffectors()
	switch name {
	case "rightEndEffector":
		return right, nil
	case "leftEndEffector":
		return left, nil
	case "tcp_center":
		return t.TCPCenter(), nil
	case "goal":
		return t.goal.pos, nil
	case "handle":
		if t.obj.slide != nil {
			return t.ObjPos(), nil
		}
	}
	return r3.Vec{}, unknown("sitePos", "site", name)
}

// SetSitePos moves a named site. Only the goal marker can be moved.
func (t *Tabletop) SetSitePos(name string, pos r3.Vec) error {
	if name != "goal" {
		return unknown("setSitePos", "site", name)
	}
	t.goal.pos = pos
	return nil
}

// SetSiteVisible shows or hides a named site when rendering
func (t *Tabletop) SetSiteVisible(name string, visible bool) error {
	if name != "goal" {
		return unknown("setSiteVisible", "site", name)
	}
	t.goal.visible = visible
	return nil
}

// JointQPos returns the position of a named slide joint
func (t *Tabletop) JointQPos(name string) (float64, error) {
	if t.obj.slide == nil || t.obj.slide.joint != name {
		return 0, unknown("jointQPos", "joint", name)
	}
	return t.qpos(t.obj), nil
}

// SetJointQPos sets the position of a named slide joint, clipped to the
// joint range
func (t *Tabletop) SetJointQPos(name string, q float64) error {
	if t.obj.slide == nil || t.obj.slide.joint != name {
		return unknown("setJointQPos", "joint", name)
	}
	s := t.obj.slide
	q = floatutils.Clip(q, s.low, s.high)
	t.place(t.obj, geometry.Add(s.origin, geometry.Scale(q, s.axis)))
	return nil
}

// JointRange returns the range of a named slide joint
func (t *Tabletop) JointRange(name string) (low, high float64, err error) {
	if t.obj.slide == nil || t.obj.slide.joint != name {
		return 0, 0, unknown("jointRange", "joint", name)
	}
	return t.obj.slide.low, t.obj.slide.high, nil
}

// SetObjXYZ teleports a free task object. Sliding objects are moved
// with SetJointQPos instead.
func (t *Tabletop) SetObjXYZ(pos r3.Vec) error {
	if t.obj.slide != nil {
		return fmt.Errorf("setObjXYZ: %v is constrained to joint %q",
			t.obj.name, t.obj.slide.joint)
	}
	pos.Z = math.Max(pos.Z, t.obj.half.Z)
	t.place(t.obj, pos)
	t.held = false
	return nil
}

// CameraNames returns the names of all cameras in sorted order
func (t *Tabletop) CameraNames() []string {
	names := make([]string, 0, len(t.cameras))
	for name := range t.cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Camera returns the named camera. Changes to the returned camera affect
// subsequent renders.
func (t *Tabletop) Camera(name string) (*Camera, error) {
	c, ok := t.cameras[name]
	if !ok {
		return nil, fmt.Errorf("camera: %q: %w", name, ErrUnknownCamera)
	}
	return c, nil
}

// Close releases the render context
func (t *Tabletop) Close() error {
	t.context.Release()
	return nil
}
