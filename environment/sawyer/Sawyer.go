// Package sawyer implements goal-conditioned tabletop manipulation tasks
// for a Sawyer-style gripper: pushing a puck, sliding a drawer, sliding a
// window and moving a block between bins.
//
// A single Env type implements every task. The task is selected with a
// Kind and configured with Params. Each episode samples a fresh goal, and
// the reward is 1.0 when a task-specific distance to the goal is below a
// threshold and 0.0 otherwise. Episodes never terminate on their own;
// callers impose a step limit, see MaxEpisodeSteps.
//
// State observations concatenate a compact feature vector with an
// equally shaped goal vector:
//
//	Push   (14): tcp(3) obj(3) grip(1) | target(3) target(3) 0.5
//	Drawer  (8): tcp(3) handle y(1)    | target(3) target y(1)
//	Window  (8): tcp(3) handle x(1)    | target(3) target x(1)
//	Bin    (14): hand(3) grip(1) obj(3) | goal+0.03z(3) 0.4 goal(3)
//
// Image observations are 64 x 64 x 6 uint8 images, flattened: the RGB
// render of the current scene followed by the RGB render of the goal
// configuration along the channel axis. The compact state is still
// returned as the TimeStep's State.
package sawyer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/environment/sawyer/internal/tabletop"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gorgonia.org/tensor"
)

// Kind selects the manipulation task
type Kind int

const (
	Push Kind = iota
	Drawer
	Window
	Bin
)

func (k Kind) String() string {
	switch k {
	case Push:
		return "push"
	case Drawer:
		return "drawer"
	case Window:
		return "window"
	case Bin:
		return "bin"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) scene() (tabletop.Scene, error) {
	switch k {
	case Push:
		return tabletop.PushScene, nil
	case Drawer:
		return tabletop.DrawerScene, nil
	case Window:
		return tabletop.WindowScene, nil
	case Bin:
		return tabletop.BinScene, nil
	default:
		return 0, fmt.Errorf("unknown task kind %v", k)
	}
}

const (
	// MaxEpisodeSteps is the step limit callers should impose
	MaxEpisodeSteps = 150

	// ImageSize is the height and width of image observations
	ImageSize = 64

	// ActionDim is the number of action dimensions: [dx, dy, dz, grip]
	ActionDim = 4

	cameraPrefix = "default-"
)

// Image task modes of the drawer and window. They select the start
// configuration of the image variants.
const (
	TaskOpen      = "open"
	TaskClose     = "close"
	TaskOpenClose = "openclose"
)

// Params configures an Env. Threshold, Camera, Task and Discount take
// the task default when left at their zero value. Goal bounds and
// booleans are used as given, so Params should start from DefaultParams.
type Params struct {
	// Push goal sampling bounds. Equal bounds pin the goal coordinate.
	GoalMinX, GoalMaxX float64
	GoalMinY, GoalMaxY float64

	// Threshold is the success distance
	Threshold float64

	// Image selects image observations
	Image bool

	// Camera names the camera of image observations. A "default-"
	// prefix is ignored.
	Camera string

	// Task is the image start mode of the drawer and window: TaskOpen,
	// TaskClose or TaskOpenClose
	Task string

	// StartAtObj moves the hand to the object before the first image
	// observation of push, window and bin
	StartAtObj bool

	// RandY randomizes the x coordinate of the push image goal
	RandY bool

	// Alias is accepted for bin image configurations and has no effect
	Alias bool

	Discount float64
	Seed     uint64
	Logger   *slog.Logger
}

// DefaultParams returns the default parameters of a task
func DefaultParams(kind Kind) Params {
	p := Params{
		Camera:   "corner2",
		Task:     TaskOpenClose,
		Discount: 1.0,
	}
	switch kind {
	case Push:
		p.GoalMinX, p.GoalMaxX = -0.1, 0.1
		p.GoalMinY, p.GoalMaxY = 0.5, 0.9
		p.Threshold = 0.05
		p.RandY = true
	case Drawer:
		p.Threshold = 0.04
	case Window:
		p.Threshold = 0.05
		p.StartAtObj = true
	case Bin:
		p.Threshold = 0.05
		p.StartAtObj = true
	}
	return p
}

// withDefaults fills unset fields of p from the task defaults
func (p Params) withDefaults(kind Kind) Params {
	d := DefaultParams(kind)
	if p.Threshold == 0 {
		p.Threshold = d.Threshold
	}
	if p.Camera == "" {
		p.Camera = d.Camera
	}
	if p.Task == "" {
		p.Task = d.Task
	}
	if p.Discount == 0 {
		p.Discount = d.Discount
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

// cameras lists the cameras each image task may render from
var cameras = map[Kind][]string{
	Push:   {"corner", "corner2", "corner3", "topview", "behindGripper"},
	Drawer: {"behindGripper", "topview", "corner2", "corner3"},
	Window: {"corner", "topview", "corner3", "behindGripper", "corner2"},
	Bin:    {"corner", "topview", "corner3", "behindGripper", "corner2"},
}

// flipped lists the cameras whose images each image task flips
// vertically
var flipped = map[Kind][]string{
	Push:   {"behindGripper"},
	Drawer: {"behindGripper"},
	Window: {"corner", "topview", "behindGripper"},
	Bin:    {"corner", "topview", "behindGripper"},
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Env is a goal-conditioned manipulation task. It satisfies the
// environment.Environment, TaskSetter, Renderer, StateSpecer,
// EpisodeLimiter and Metricer interfaces.
type Env struct {
	kind   Kind
	params Params
	sim    *tabletop.Tabletop
	logger *slog.Logger
	camera string

	rng  *samplers
	task *environment.Task

	// target is the goal of the compact state. Image tasks additionally
	// track goal (push, bin) or goalCoord (drawer y, window slide).
	target    r3.Vec
	goal      r3.Vec
	goalCoord float64
	goalImg   *tensor.Dense
	img       *tensor.Dense

	metrics *environment.DistanceLog

	obsSpec, stateSpec, actionSpec environment.Spec
	currentStep                    ts.TimeStep
}

// New returns a new Env of the given kind along with the first TimeStep
// of its first episode
func New(kind Kind, params Params) (*Env, ts.TimeStep, error) {
	scene, err := kind.scene()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}
	p := params.withDefaults(kind)

	if p.GoalMinX > p.GoalMaxX || p.GoalMinY > p.GoalMaxY {
		return nil, ts.TimeStep{}, fmt.Errorf("new: invalid goal bounds "+
			"x[%v, %v] y[%v, %v]", p.GoalMinX, p.GoalMaxX, p.GoalMinY,
			p.GoalMaxY)
	}

	camera := strings.TrimPrefix(p.Camera, cameraPrefix)
	if p.Image {
		if !contains(cameras[kind], camera) {
			return nil, ts.TimeStep{}, fmt.Errorf("new: camera %q: %w",
				p.Camera, tabletop.ErrUnknownCamera)
		}
		if (kind == Drawer || kind == Window) && p.Task != TaskOpen &&
			p.Task != TaskClose && p.Task != TaskOpenClose {
			return nil, ts.TimeStep{}, fmt.Errorf("new: unknown %v task %q",
				kind, p.Task)
		}
	}

	sim, err := tabletop.New(scene)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}

	e := &Env{
		kind:    kind,
		params:  p,
		sim:     sim,
		logger:  p.Logger,
		camera:  camera,
		rng:     newSamplers(kind, p),
		metrics: environment.NewDistanceLog(),
	}

	stateDim := 8
	if kind == Push || kind == Bin {
		stateDim = 14
	}
	e.stateSpec = environment.NewUnboundedSpec(stateDim, environment.State)
	if p.Image {
		e.obsSpec = environment.NewImageSpec(ImageSize, ImageSize, 6,
			environment.Observation)
	} else {
		e.obsSpec = environment.NewUnboundedSpec(stateDim,
			environment.Observation)
	}
	e.actionSpec = newActionSpec()

	// The first reset settles the simulator; goals are randomized from
	// the next reset on
	if _, err := e.Reset(); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}
	e.metrics.Clear()
	step, err := e.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}

	e.logger.Debug("created sawyer environment", "kind", kind,
		"image", p.Image, "camera", camera, "seed", p.Seed)
	return e, step, nil
}

func newActionSpec() environment.Spec {
	low := make([]float64, ActionDim)
	high := make([]float64, ActionDim)
	for i := range low {
		low[i] = -1.0
		high[i] = 1.0
	}
	return environment.NewSpec(mat.NewVecDense(ActionDim, nil),
		environment.Action, mat.NewVecDense(ActionDim, low),
		mat.NewVecDense(ActionDim, high), environment.Continuous)
}

// Kind returns the task of the environment
func (e *Env) Kind() Kind {
	return e.kind
}

// Reset starts a new episode with a freshly sampled goal
func (e *Env) Reset() (ts.TimeStep, error) {
	e.metrics.EndEpisode()

	var err error
	if e.params.Image {
		err = e.resetImage()
	} else {
		err = e.resetState()
	}
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %w", err)
	}
	if err := e.sim.SetSitePos("goal", e.target); err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %w", err)
	}

	dist, err := e.distance()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %w", err)
	}
	e.metrics.Record(dist)

	obs, state, err := e.observe()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %w", err)
	}
	step := ts.NewWithState(ts.First, 0, e.params.Discount, obs, state, 0)
	step.SetInfo(ts.InfoDistance, dist)
	e.currentStep = step
	return step, nil
}

// Step takes one environmental step. The returned bool is always false:
// episodes are ended by an external step limit.
func (e *Env) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() != ActionDim {
		return ts.TimeStep{}, false, fmt.Errorf("step: invalid action "+
			"dimensions \n\thave(%v) \n\twant(%v)", action.Len(), ActionDim)
	}

	var a [ActionDim]float64
	for i := range a {
		a[i] = action.AtVec(i)
	}
	e.sim.Act(a)

	dist, err := e.distance()
	if err != nil {
		return ts.TimeStep{}, false, fmt.Errorf("step: %w", err)
	}
	e.metrics.Record(dist)

	obs, state, err := e.observe()
	if err != nil {
		return ts.TimeStep{}, false, fmt.Errorf("step: %w", err)
	}

	success := 0.0
	if dist < e.params.Threshold {
		success = 1.0
	}
	reward := success
	if !e.params.Image && (e.kind == Drawer || e.kind == Window) {
		reward = 0.0
	}

	step := ts.NewWithState(ts.Mid, reward, e.params.Discount, obs, state,
		e.currentStep.Number+1)
	step.SetInfo(ts.InfoDistance, dist)
	step.SetInfo(ts.InfoSuccess, success)
	e.currentStep = step
	return step, false, nil
}

// observe returns the observation and compact state of the current
// configuration, rendering a new image for image tasks
func (e *Env) observe() (obs, state *mat.VecDense, err error) {
	state = e.state()
	if !e.params.Image {
		return state, state, nil
	}

	img, err := e.image()
	if err != nil {
		return nil, nil, err
	}
	e.img, err = concatChannels(img, e.goalImg)
	if err != nil {
		return nil, nil, err
	}
	return flatten(e.img), state, nil
}

// CurrentTimeStep returns the last TimeStep returned by Reset or Step
func (e *Env) CurrentTimeStep() ts.TimeStep {
	return e.currentStep
}

// ObservationSpec returns the observation specification
func (e *Env) ObservationSpec() environment.Spec {
	return e.obsSpec
}

// StateSpec returns the specification of the compact state
func (e *Env) StateSpec() environment.Spec {
	return e.stateSpec
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

// MaxEpisodeSteps returns the step limit callers should impose
func (e *Env) MaxEpisodeSteps() int {
	return MaxEpisodeSteps
}

// Metrics returns the per-step goal distances of every episode
func (e *Env) Metrics() *environment.DistanceLog {
	return e.metrics
}

// ResetMetrics drops every recorded goal distance
func (e *Env) ResetMetrics() {
	e.metrics.Clear()
}

// Image returns the last image observation as a (64, 64, 6) tensor, or
// nil for state tasks
func (e *Env) Image() *tensor.Dense {
	return e.img
}

// Target returns the goal position of the current episode
func (e *Env) Target() r3.Vec {
	return e.target
}

// Render renders the scene from the named camera. Unlike image
// observations, the goal marker stays visible and no flip is applied.
func (e *Env) Render(camera string, height, width int) (*tensor.Dense,
	error) {
	if err := e.sim.SetSiteVisible("goal", true); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	img, err := e.sim.Render(strings.TrimPrefix(camera, cameraPrefix),
		height, width)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return img, nil
}

// Seed reseeds the goal and start samplers
func (e *Env) Seed(seed uint64) {
	e.params.Seed = seed
	e.rng.seed(seed)
}

// SetTask pins the randomized reset parameters of every following
// episode. A Task without parameters re-enables randomization.
//
// Parameters are, per kind:
//
//	Push:   obj x, obj y, goal x, goal y, goal z
//	Drawer: target slide, start slide
//	Window: target slide, start slide
//	Bin:    obj x, obj y, goal x, goal y, goal z
func (e *Env) SetTask(t environment.Task) error {
	if len(t.Params) == 0 {
		e.task = nil
		return nil
	}
	if want := taskParams(e.kind); len(t.Params) != want {
		return fmt.Errorf("setTask: invalid number of %v task parameters "+
			"\n\thave(%v) \n\twant(%v)", e.kind, len(t.Params), want)
	}
	task := environment.Task{Name: t.Name, Params: append([]float64(nil),
		t.Params...)}
	e.task = &task
	return nil
}

// Close releases the simulator's render context
func (e *Env) Close() error {
	return e.sim.Close()
}
