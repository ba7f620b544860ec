package wrappers

import (
	"fmt"

	"github.com/samuelfneumann/goalenv/environment"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// PixelConfig determines the images rendered by a PixelObservation.
// Zero fields take the values of DefaultPixelConfig.
type PixelConfig struct {
	Height   int    `json:"height" yaml:"height"`
	Width    int    `json:"width" yaml:"width"`
	Channels int    `json:"n_channels" yaml:"n_channels"`
	Camera   string `json:"camera_name" yaml:"camera_name"`
}

// DefaultPixelConfig returns the default rendering configuration
func DefaultPixelConfig() PixelConfig {
	return PixelConfig{
		Height:   96,
		Width:    96,
		Channels: 3,
		Camera:   "corner3",
	}
}

func (c PixelConfig) withDefaults() PixelConfig {
	d := DefaultPixelConfig()
	if c.Height == 0 {
		c.Height = d.Height
	}
	if c.Width == 0 {
		c.Width = d.Width
	}
	if c.Channels == 0 {
		c.Channels = d.Channels
	}
	if c.Camera == "" {
		c.Camera = d.Camera
	}
	return c
}

// PixelObservation replaces the observations of an environment with
// images rendered from one of its cameras. The observation of each
// TimeStep is the flattened (height, width, channels) image and the
// State is the wrapped environment's observation.
//
// A single image is rendered after every Reset and every Step. Images
// with one channel are converted to greyscale.
type PixelObservation struct {
	environment.Environment
	renderer environment.Renderer
	config   PixelConfig

	image           *tensor.Dense
	currentTimeStep ts.TimeStep
}

// NewPixelObservation returns a new PixelObservation wrapping env, along
// with the first step of an episode
func NewPixelObservation(env environment.Environment,
	c PixelConfig) (*PixelObservation, ts.TimeStep, error) {
	renderer, ok := env.(environment.Renderer)
	if !ok {
		return nil, ts.TimeStep{}, fmt.Errorf("newPixelObservation: "+
			"environment %T cannot render", env)
	}

	c = c.withDefaults()
	if c.Height < 0 || c.Width < 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("newPixelObservation: image "+
			"size must be positive \n\thave(%v, %v)", c.Height, c.Width)
	}
	if c.Channels != 1 && c.Channels != 3 {
		return nil, ts.TimeStep{}, fmt.Errorf("newPixelObservation: "+
			"channels must be 1 or 3 \n\thave(%v)", c.Channels)
	}

	p := &PixelObservation{
		Environment: env,
		renderer:    renderer,
		config:      c,
	}

	step, err := p.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newPixelObservation: %w", err)
	}
	return p, step, nil
}

// Reset resets the environment to some starting state
func (p *PixelObservation) Reset() (ts.TimeStep, error) {
	step, err := p.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}

	if err := p.observe(&step); err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not render "+
			"observation: %w", err)
	}
	return step, nil
}

// Step takes one environmental step given some action
func (p *PixelObservation) Step(action *mat.VecDense) (ts.TimeStep, bool,
	error) {
	step, done, err := p.Environment.Step(action)
	if err != nil {
		return ts.TimeStep{}, true, err
	}

	if err := p.observe(&step); err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not render "+
			"observation: %w", err)
	}
	return step, done, nil
}

// observe renders the current image into step
func (p *PixelObservation) observe(step *ts.TimeStep) error {
	img, err := p.renderer.Render(p.config.Camera, p.config.Height,
		p.config.Width)
	if err != nil {
		return err
	}

	data, ok := img.Data().([]uint8)
	if !ok {
		return fmt.Errorf("observe: expected uint8 image, got %v", img.Dtype())
	}
	want := p.config.Height * p.config.Width * 3
	if len(data) != want {
		return fmt.Errorf("observe: invalid image size \n\thave(%v) "+
			"\n\twant(%v)", img.Shape(), []int{p.config.Height,
			p.config.Width, 3})
	}

	if p.config.Channels == 1 {
		grey := make([]uint8, p.config.Height*p.config.Width)
		for i := range grey {
			r, g, b := data[3*i], data[3*i+1], data[3*i+2]
			grey[i] = uint8(0.299*float64(r) + 0.587*float64(g) +
				0.114*float64(b) + 0.5)
		}
		data = grey
	} else {
		data = append([]uint8(nil), data...)
	}

	p.image = tensor.New(
		tensor.WithShape(p.config.Height, p.config.Width, p.config.Channels),
		tensor.WithBacking(data),
	)

	obs := make([]float64, len(data))
	for i, v := range data {
		obs[i] = float64(v)
	}

	step.State = step.Observation
	step.Observation = mat.NewVecDense(len(obs), obs)
	p.currentTimeStep = *step
	return nil
}

// CurrentTimeStep returns the current time step in the environment
func (p *PixelObservation) CurrentTimeStep() ts.TimeStep {
	return p.currentTimeStep
}

// Image returns the most recently rendered observation as a (height,
// width, channels) uint8 tensor
func (p *PixelObservation) Image() *tensor.Dense {
	return p.image
}

// Config returns the rendering configuration
func (p *PixelObservation) Config() PixelConfig {
	return p.config
}

// ObservationSpec returns the observation specification of the
// environment
func (p *PixelObservation) ObservationSpec() environment.Spec {
	return environment.NewImageSpec(p.config.Height, p.config.Width,
		p.config.Channels, environment.Observation)
}

// StateSpec returns the specification of the raw states, which is the
// observation specification of the wrapped environment
func (p *PixelObservation) StateSpec() environment.Spec {
	spec := p.Environment.ObservationSpec()
	spec.Type = environment.State
	return spec
}

// SetTask assigns a task to the wrapped environment
func (p *PixelObservation) SetTask(t environment.Task) error {
	return setTask(p.Environment, t)
}

// Render renders the wrapped environment
func (p *PixelObservation) Render(camera string, height,
	width int) (*tensor.Dense, error) {
	return p.renderer.Render(camera, height, width)
}

// Unwrap returns the wrapped environment
func (p *PixelObservation) Unwrap() environment.Environment {
	return p.Environment
}

func (p *PixelObservation) String() string {
	return fmt.Sprintf("PixelObservation(%v, %vx%vx%v): %v", p.config.Camera,
		p.config.Height, p.config.Width, p.config.Channels, p.Environment)
}
