// Package pointmaze implements a goal-conditioned point mass navigating
// a 2-D maze, in the manner of the D4RL maze2d environments.
//
// The point mass is a Box2D circle driven by a 2-D force action in
// [-1, 1]. Observations concatenate the state (position, velocity) with
// an equally shaped goal (goal position, zero velocity). Episodes never
// terminate on their own; callers impose Layout.MaxEpisodeSteps.
package pointmaze

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/ByteArena/box2d"
	"github.com/fogleman/gg"
	"github.com/samuelfneumann/goalenv/environment"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"github.com/samuelfneumann/goalenv/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

const (
	// ActionDim is the number of action dimensions: a force along x and y
	ActionDim = 2

	// StateDim is the number of state dimensions: position and velocity
	StateDim = 4

	// Camera is the only camera a maze renders from
	Camera = "topview"

	timestep           = 0.01
	frameSkip          = 1
	velocityIterations = 8
	positionIterations = 3

	ballRadius    = 0.1
	ballMass      = 1.0
	forceScale    = 10.0
	damping       = 1.0
	maxSpeed      = 5.0
	successRadius = 0.5
	cellNoise     = 0.1
	velocityNoise = 0.1
)

// ErrUnknownCamera is returned when rendering from a camera other than
// Camera
var ErrUnknownCamera = errors.New("unknown camera")

var (
	floorColour = color.RGBA{R: 220, G: 220, B: 210, A: 255}
	wallColour  = color.RGBA{R: 90, G: 90, B: 100, A: 255}
	ballColour  = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	goalColour  = color.RGBA{R: 40, G: 170, B: 60, A: 255}
)

// Params configures an Env
type Params struct {
	Layout Layout

	// Dense selects the negative goal distance as reward instead of the
	// sparse success indicator
	Dense bool

	Discount float64
	Seed     uint64
	Logger   *slog.Logger
}

// Env is a point mass maze. It satisfies the environment.Environment,
// TaskSetter, Renderer, EpisodeLimiter and Metricer interfaces.
type Env struct {
	params Params
	grid   grid
	logger *slog.Logger

	world box2d.B2World
	ball  *box2d.B2Body

	cells    *environment.CategoricalStarter
	noise    *environment.UniformStarter
	velocity distuv.Normal
	task     *environment.Task

	goal    r2.Vec
	metrics *environment.DistanceLog

	obsSpec, actionSpec environment.Spec
	currentStep         ts.TimeStep
}

// New returns a new maze along with the first TimeStep of its first
// episode
func New(params Params) (*Env, ts.TimeStep, error) {
	info, ok := layouts[params.Layout]
	if !ok {
		return nil, ts.TimeStep{}, fmt.Errorf("new: unknown layout %v",
			params.Layout)
	}
	g, err := parse(info.plan)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}

	if params.Discount == 0 {
		params.Discount = 1.0
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}

	e := &Env{
		params:  params,
		grid:    g,
		logger:  params.Logger,
		world:   box2d.MakeB2World(box2d.MakeB2Vec2(0, 0)),
		metrics: environment.NewDistanceLog(),
	}
	e.cells = environment.NewCategoricalStarter([]int{len(g.empty)},
		params.Seed)
	e.noise = environment.NewUniformStarter([]r1.Interval{
		{Min: -cellNoise, Max: cellNoise},
		{Min: -cellNoise, Max: cellNoise},
	}, params.Seed+1)
	e.velocity = distuv.Normal{Mu: 0, Sigma: velocityNoise,
		Src: rand.NewSource(params.Seed + 2)}

	e.createWalls()
	e.createBall()

	e.obsSpec = environment.NewUnboundedSpec(2*StateDim,
		environment.Observation)
	low := mat.NewVecDense(ActionDim, []float64{-1, -1})
	high := mat.NewVecDense(ActionDim, []float64{1, 1})
	e.actionSpec = environment.NewSpec(mat.NewVecDense(ActionDim, nil),
		environment.Action, low, high, environment.Continuous)

	step, err := e.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}

	e.logger.Debug("created point maze", "layout", params.Layout,
		"dense", params.Dense, "seed", params.Seed)
	return e, step, nil
}

// createWalls adds one static box per wall cell
func (e *Env) createWalls() {
	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_staticBody
	walls := e.world.CreateBody(&def)

	for _, c := range e.grid.walls {
		shape := box2d.NewB2PolygonShape()
		x, y := float64(c.i), float64(c.j)
		vertices := []box2d.B2Vec2{
			box2d.MakeB2Vec2(x-0.5, y-0.5),
			box2d.MakeB2Vec2(x+0.5, y-0.5),
			box2d.MakeB2Vec2(x+0.5, y+0.5),
			box2d.MakeB2Vec2(x-0.5, y+0.5),
		}
		shape.Set(vertices, len(vertices))

		fix := box2d.MakeB2FixtureDef()
		fix.Shape = shape
		fix.Friction = 0.0
		walls.CreateFixtureFromDef(&fix)
	}
}

func (e *Env) createBall() {
	def := box2d.MakeB2BodyDef()
	def.Type = box2d.B2BodyType.B2_dynamicBody
	def.FixedRotation = true
	def.AllowSleep = false
	def.LinearDamping = damping
	def.Bullet = true
	e.ball = e.world.CreateBody(&def)

	shape := box2d.NewB2CircleShape()
	shape.M_radius = ballRadius

	fix := box2d.MakeB2FixtureDef()
	fix.Shape = shape
	fix.Density = ballMass / (math.Pi * ballRadius * ballRadius)
	fix.Friction = 0.0
	fix.Restitution = 0.0
	e.ball.CreateFixtureFromDef(&fix)
}

// sampleCell returns the centre of a random empty cell with noise added
func (e *Env) sampleCell() r2.Vec {
	c := e.grid.empty[e.cells.Choose()]
	n := e.noise.Start()
	return r2.Vec{X: float64(c.i) + n.AtVec(0), Y: float64(c.j) + n.AtVec(1)}
}

// Reset starts a new episode with a random start and goal
func (e *Env) Reset() (ts.TimeStep, error) {
	e.metrics.EndEpisode()

	var start, vel r2.Vec
	if e.task != nil {
		p := e.task.Params
		start = r2.Vec{X: p[0], Y: p[1]}
		e.goal = r2.Vec{X: p[2], Y: p[3]}
	} else {
		start = e.sampleCell()
		e.goal = e.sampleCell()
		vel = r2.Vec{X: e.velocity.Rand(), Y: e.velocity.Rand()}
	}

	e.ball.SetTransform(box2d.MakeB2Vec2(start.X, start.Y), 0)
	e.ball.SetLinearVelocity(box2d.MakeB2Vec2(vel.X, vel.Y))

	dist := e.distance()
	e.metrics.Record(dist)

	step := ts.New(ts.First, 0, e.params.Discount, e.observe(), 0)
	step.SetInfo(ts.InfoDistance, dist)
	e.currentStep = step
	return step, nil
}

// Step applies a force to the point mass. The returned bool is always
// false.
func (e *Env) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() != ActionDim {
		return ts.TimeStep{}, false, fmt.Errorf("step: invalid action "+
			"dimensions \n\thave(%v) \n\twant(%v)", action.Len(), ActionDim)
	}

	fx := floatutils.Clip(action.AtVec(0), -1, 1) * forceScale
	fy := floatutils.Clip(action.AtVec(1), -1, 1) * forceScale
	for i := 0; i < frameSkip; i++ {
		e.ball.ApplyForceToCenter(box2d.MakeB2Vec2(fx, fy), true)
		e.world.Step(timestep, velocityIterations, positionIterations)

		v := e.ball.GetLinearVelocity()
		if speed := math.Hypot(v.X, v.Y); speed > maxSpeed {
			e.ball.SetLinearVelocity(box2d.MakeB2Vec2(v.X*maxSpeed/speed,
				v.Y*maxSpeed/speed))
		}
	}

	dist := e.distance()
	e.metrics.Record(dist)

	success := 0.0
	if dist <= successRadius {
		success = 1.0
	}
	reward := success
	if e.params.Dense {
		reward = -dist
	}

	step := ts.New(ts.Mid, reward, e.params.Discount, e.observe(),
		e.currentStep.Number+1)
	step.SetInfo(ts.InfoDistance, dist)
	step.SetInfo(ts.InfoSuccess, success)
	e.currentStep = step
	return step, false, nil
}

// Position returns the position of the point mass
func (e *Env) Position() r2.Vec {
	p := e.ball.GetPosition()
	return r2.Vec{X: p.X, Y: p.Y}
}

// Goal returns the goal of the current episode
func (e *Env) Goal() r2.Vec {
	return e.goal
}

func (e *Env) distance() float64 {
	p := e.Position()
	return math.Hypot(p.X-e.goal.X, p.Y-e.goal.Y)
}

func (e *Env) observe() *mat.VecDense {
	p := e.Position()
	v := e.ball.GetLinearVelocity()
	return mat.NewVecDense(2*StateDim, []float64{
		p.X, p.Y, v.X, v.Y,
		e.goal.X, e.goal.Y, 0, 0,
	})
}

// CurrentTimeStep returns the last TimeStep returned by Reset or Step
func (e *Env) CurrentTimeStep() ts.TimeStep {
	return e.currentStep
}

// ObservationSpec returns the observation specification
func (e *Env) ObservationSpec() environment.Spec {
	return e.obsSpec
}

// ActionSpec returns the action specification
func (e *Env) ActionSpec() environment.Spec {
	return e.actionSpec
}

// DiscountSpec returns the discount specification
func (e *Env) DiscountSpec() environment.Spec {
	return environment.NewConstantSpec(e.params.Discount,
		environment.Discount)
}

// MaxEpisodeSteps returns the step limit of the maze layout
func (e *Env) MaxEpisodeSteps() int {
	return e.params.Layout.MaxEpisodeSteps()
}

// Metrics returns the per-step goal distances of every episode
func (e *Env) Metrics() *environment.DistanceLog {
	return e.metrics
}

// Seed reseeds the start and goal samplers
func (e *Env) Seed(seed uint64) {
	e.params.Seed = seed
	e.cells.Seed(seed)
	e.noise.Seed(seed + 1)
	e.velocity.Src = rand.NewSource(seed + 2)
}

// SetTask pins the start and goal of every following episode. Params are
// start x, start y, goal x, goal y. A Task without parameters re-enables
// randomization.
func (e *Env) SetTask(t environment.Task) error {
	if len(t.Params) == 0 {
		e.task = nil
		return nil
	}
	if len(t.Params) != 4 {
		return fmt.Errorf("setTask: invalid number of task parameters "+
			"\n\thave(%v) \n\twant(4)", len(t.Params))
	}
	task := environment.Task{Name: t.Name, Params: append([]float64(nil),
		t.Params...)}
	e.task = &task
	return nil
}

// Render draws the maze from above. Row 0 of the maze is at the top of
// the image.
func (e *Env) Render(camera string, height, width int) (*tensor.Dense,
	error) {
	if camera != Camera {
		return nil, fmt.Errorf("render: %q: %w", camera, ErrUnknownCamera)
	}
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("render: invalid resolution (%v, %v)", height,
			width)
	}

	dc := gg.NewContext(width, height)
	sx := float64(width) / float64(e.grid.cols)
	sy := float64(height) / float64(e.grid.rows)
	toPixel := func(p r2.Vec) (float64, float64) {
		return (p.Y + 0.5) * sx, (p.X + 0.5) * sy
	}

	dc.SetColor(floorColour)
	dc.Clear()

	dc.SetColor(wallColour)
	for _, c := range e.grid.walls {
		dc.DrawRectangle(float64(c.j)*sx, float64(c.i)*sy, sx, sy)
	}
	dc.Fill()

	r := math.Min(sx, sy)
	gx, gy := toPixel(e.goal)
	dc.SetColor(goalColour)
	dc.DrawCircle(gx, gy, successRadius*r/2)
	dc.Fill()

	bx, by := toPixel(e.Position())
	dc.SetColor(ballColour)
	dc.DrawCircle(bx, by, math.Max(ballRadius*r, 1))
	dc.Fill()

	return toTensor(dc.Image(), height, width), nil
}

// toTensor copies the RGB channels of img into an (h, w, 3) uint8 tensor
func toTensor(img image.Image, height, width int) *tensor.Dense {
	data := make([]uint8, 0, height*width*3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			data = append(data, c.R, c.G, c.B)
		}
	}
	return tensor.New(tensor.WithShape(height, width, 3),
		tensor.WithBacking(data))
}

// Close is a no-op; the maze holds no external resources
func (e *Env) Close() error {
	return nil
}
