package tabletop

import (
	"image/color"

	"github.com/ByteArena/box2d"
	"github.com/samuelfneumann/goalenv/environment/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	handColour   = color.RGBA{R: 90, G: 90, B: 100, A: 255}
	fingerColour = color.RGBA{R: 40, G: 40, B: 45, A: 255}
	tableColour  = color.RGBA{R: 172, G: 132, B: 90, A: 255}
	skyColour    = color.RGBA{R: 205, G: 215, B: 225, A: 255}
	goalColour   = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	puckColour   = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	blockColour  = color.RGBA{R: 40, G: 170, B: 60, A: 255}
	woodColour   = color.RGBA{R: 120, G: 80, B: 50, A: 255}
	drawerColour = color.RGBA{R: 150, G: 105, B: 70, A: 255}
	frameColour  = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	glassColour  = color.RGBA{R: 150, G: 200, B: 230, A: 255}
	handleColour = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	binColour    = color.RGBA{R: 100, G: 100, B: 180, A: 255}
)

// boxShape returns an axis-aligned box in metres centred at (cx, cy)
// relative to its body
func boxShape(cx, cy, hx, hy float64) *box2d.B2PolygonShape {
	shape := box2d.NewB2PolygonShape()
	vertices := []box2d.B2Vec2{
		box2d.MakeB2Vec2((cx-hx)*Scale, (cy-hy)*Scale),
		box2d.MakeB2Vec2((cx+hx)*Scale, (cy-hy)*Scale),
		box2d.MakeB2Vec2((cx+hx)*Scale, (cy+hy)*Scale),
		box2d.MakeB2Vec2((cx-hx)*Scale, (cy+hy)*Scale),
	}
	shape.Set(vertices, len(vertices))
	return shape
}

// attach creates a fixture on body with the given collision category.
// Masks start empty and are set by updateFilters.
func attach(body *box2d.B2Body, shape box2d.B2ShapeInterface, category,
	mask uint16, density float64) *box2d.B2Fixture {
	fix := box2d.MakeB2FixtureDef()
	fix.Shape = shape
	fix.Density = density
	fix.Friction = 0.5
	fix.Restitution = 0.0
	filter := box2d.MakeB2Filter()
	filter.CategoryBits = category
	filter.MaskBits = mask
	fix.Filter = filter
	return body.CreateFixtureFromDef(&fix)
}

// dynamicBody creates a non-rotating dynamic body at pos
func (t *Tabletop) dynamicBody(pos r3.Vec, damping float64) *box2d.B2Body {
	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_dynamicBody
	def.Position = box2d.MakeB2Vec2(pos.X*Scale, pos.Y*Scale)
	def.FixedRotation = true
	def.LinearDamping = damping
	def.AllowSleep = false
	return t.world.CreateBody(&def)
}

func (t *Tabletop) createHand() {
	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_kinematicBody
	def.Position = box2d.MakeB2Vec2(HandInit.X*Scale, HandInit.Y*Scale)
	def.FixedRotation = true
	def.AllowSleep = false
	t.hand = t.world.CreateBody(&def)

	fix := attach(t.hand, boxShape(0, 0, 0.015, 0.015), catHand, 0, 1.0)
	t.handFix = []*box2d.B2Fixture{fix}
}

func (t *Tabletop) createPush() {
	start := r3.Vec{X: 0, Y: 0.6, Z: 0.02}
	body := t.dynamicBody(start, 10.0)

	shape := box2d.NewB2CircleShape()
	shape.M_radius = 0.02 * Scale
	fix := attach(body, shape, catObject, catHand, 1.0)

	t.obj = &part{
		name:     "obj",
		body:     body,
		fixtures: []*box2d.B2Fixture{fix},
		mask:     catHand,
		half:     r3.Vec{X: 0.02, Y: 0.02, Z: 0.02},
		radius:   0.02,
		initial:  start,
		colour:   puckColour,
	}
	t.goalInit = r3.Vec{X: 0.1, Y: 0.8, Z: 0.02}
	t.goal = site{radius: 0.02, colour: goalColour, visible: true}
}

// The drawer slides along y; its handle sits 0.16 in front of the
// drawer centre and closing the drawer moves it away from the robot
func (t *Tabletop) createDrawer() {
	origin := r3.Vec{X: 0, Y: 0.9, Z: 0.09}
	body := t.dynamicBody(origin, 20.0)
	box := attach(body, boxShape(0, 0, 0.1, 0.14), catObject, catHand, 2.0)
	handle := attach(body, boxShape(0, -0.155, 0.04, 0.012), catObject,
		catHand, 0.5)

	t.obj = &part{
		name:     "drawer_link",
		body:     body,
		fixtures: []*box2d.B2Fixture{box, handle},
		mask:     catHand,
		half:     r3.Vec{X: 0.1, Y: 0.14, Z: 0.05},
		initial:  origin,
		grasp:    r3.Vec{Y: -0.16},
		slide: &slide{
			joint:  "drawer_slide",
			origin: origin,
			axis:   r3.Vec{Y: 1},
			low:    -0.16,
			high:   0.0,
		},
		colour: drawerColour,
	}
	t.prismatic(body, origin, t.obj.slide)

	t.slabs = []slab{
		{centre: r3.Vec{X: -0.115, Y: 0.92, Z: 0.09},
			half: r3.Vec{X: 0.01, Y: 0.16, Z: 0.09}, colour: woodColour},
		{centre: r3.Vec{X: 0.115, Y: 0.92, Z: 0.09},
			half: r3.Vec{X: 0.01, Y: 0.16, Z: 0.09}, colour: woodColour},
		{centre: r3.Vec{X: 0, Y: 0.92, Z: 0.19},
			half: r3.Vec{X: 0.125, Y: 0.16, Z: 0.01}, colour: woodColour},
		{centre: r3.Vec{X: 0, Y: 1.07, Z: 0.09},
			half: r3.Vec{X: 0.125, Y: 0.01, Z: 0.09}, colour: woodColour},
	}
	t.goalInit = geometry.Add(origin, t.obj.grasp)
	t.goal = site{radius: 0.02, colour: goalColour, visible: true}
}

// The window sash slides along x and is closed at zero translation
func (t *Tabletop) createWindow() {
	origin := r3.Vec{X: -0.11, Y: 0.8, Z: 0.18}
	body := t.dynamicBody(origin, 20.0)
	sash := attach(body, boxShape(0, 0, 0.11, 0.01), catObject, catHand, 1.0)
	handle := attach(body, boxShape(0, -0.03, 0.02, 0.02), catObject,
		catHand, 0.5)

	t.obj = &part{
		name:     "window",
		body:     body,
		fixtures: []*box2d.B2Fixture{sash, handle},
		mask:     catHand,
		half:     r3.Vec{X: 0.11, Y: 0.01, Z: 0.14},
		initial:  origin,
		grasp:    r3.Vec{Y: -0.04, Z: -0.02},
		slide: &slide{
			joint:  "window_slide",
			origin: origin,
			axis:   r3.Vec{X: 1},
			low:    0.0,
			high:   0.2,
		},
		colour: frameColour,
	}
	t.prismatic(body, origin, t.obj.slide)

	t.slabs = []slab{
		{centre: r3.Vec{X: -0.23, Y: 0.81, Z: 0.18},
			half: r3.Vec{X: 0.01, Y: 0.02, Z: 0.15}, colour: frameColour},
		{centre: r3.Vec{X: 0.23, Y: 0.81, Z: 0.18},
			half: r3.Vec{X: 0.01, Y: 0.02, Z: 0.15}, colour: frameColour},
		{centre: r3.Vec{X: 0, Y: 0.81, Z: 0.34},
			half: r3.Vec{X: 0.24, Y: 0.02, Z: 0.01}, colour: frameColour},
		{centre: r3.Vec{X: 0, Y: 0.81, Z: 0.03},
			half: r3.Vec{X: 0.24, Y: 0.02, Z: 0.01}, colour: frameColour},
		{centre: r3.Vec{X: 0.11, Y: 0.82, Z: 0.18},
			half: r3.Vec{X: 0.11, Y: 0.005, Z: 0.14}, colour: glassColour},
	}
	t.goalInit = geometry.Add(origin, t.obj.grasp)
	t.goal = site{radius: 0.02, colour: goalColour, visible: true}
}

// prismatic joins body to the ground along the axis of s
func (t *Tabletop) prismatic(body *box2d.B2Body, origin r3.Vec, s *slide) {
	pjd := box2d.MakeB2PrismaticJointDef()
	pjd.Initialize(t.ground, body,
		box2d.MakeB2Vec2(origin.X*Scale, origin.Y*Scale),
		box2d.MakeB2Vec2(s.axis.X, s.axis.Y))
	pjd.EnableLimit = true
	pjd.LowerTranslation = s.low * Scale
	pjd.UpperTranslation = s.high * Scale
	t.world.CreateJoint(&pjd)
}

func (t *Tabletop) createBin() {
	start := r3.Vec{X: -0.12, Y: 0.7, Z: 0.02}
	body := t.dynamicBody(start, 10.0)
	fix := attach(body, boxShape(0, 0, 0.02, 0.02), catObject,
		catHand|catWall, 1.0)

	t.obj = &part{
		name:     "obj",
		body:     body,
		fixtures: []*box2d.B2Fixture{fix},
		mask:     catHand | catWall,
		half:     r3.Vec{X: 0.02, Y: 0.02, Z: 0.02},
		initial:  start,
		colour:   blockColour,
	}

	t.bins["bin_start"] = r3.Vec{X: -0.12, Y: 0.7}
	t.bins["bin_goal"] = r3.Vec{X: 0.12, Y: 0.7}

	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_staticBody
	t.walls = t.world.CreateBody(&def)

	const inner, thick, height = 0.08, 0.01, wallHeight / 2
	for _, name := range []string{"bin_start", "bin_goal"} {
		c := t.bins[name]
		walls := []slab{
			{centre: r3.Vec{X: c.X - inner - thick, Y: c.Y, Z: height},
				half: r3.Vec{X: thick, Y: inner + 2*thick, Z: height}},
			{centre: r3.Vec{X: c.X + inner + thick, Y: c.Y, Z: height},
				half: r3.Vec{X: thick, Y: inner + 2*thick, Z: height}},
			{centre: r3.Vec{X: c.X, Y: c.Y - inner - thick, Z: height},
				half: r3.Vec{X: inner, Y: thick, Z: height}},
			{centre: r3.Vec{X: c.X, Y: c.Y + inner + thick, Z: height},
				half: r3.Vec{X: inner, Y: thick, Z: height}},
		}
		for _, w := range walls {
			w.colour = binColour
			attach(t.walls, boxShape(w.centre.X, w.centre.Y, w.half.X,
				w.half.Y), catWall, catObject, 0)
			t.slabs = append(t.slabs, w)
		}
	}
	t.goalInit = geometry.Add(t.bins["bin_goal"], r3.Vec{Z: 0.02})
	t.goal = site{radius: 0.02, colour: goalColour, visible: true}
}
