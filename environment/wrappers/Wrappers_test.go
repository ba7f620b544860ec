package wrappers

import (
	"fmt"
	"testing"

	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/environment/sawyer"
	"github.com/samuelfneumann/goalenv/expreplay"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// counter is an environment whose observation is (n, -n) after n steps
type counter struct {
	n       int
	resets  int
	steps   int
	renders int
	tasks   []environment.Task
	current ts.TimeStep
}

func (c *counter) obs() *mat.VecDense {
	return mat.NewVecDense(2, []float64{float64(c.n), -float64(c.n)})
}

func (c *counter) Reset() (ts.TimeStep, error) {
	c.resets++
	c.n = 0
	c.current = ts.New(ts.First, 0, 0.9, c.obs(), 0)
	return c.current, nil
}

func (c *counter) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action.Len() != 1 {
		return ts.TimeStep{}, true, fmt.Errorf("step: invalid action")
	}
	c.steps++
	c.n++
	c.current = ts.New(ts.Mid, float64(c.n), 0.9, c.obs(), c.n)
	return c.current, false, nil
}

func (c *counter) CurrentTimeStep() ts.TimeStep { return c.current }

func (c *counter) ObservationSpec() environment.Spec {
	return environment.NewUnboundedSpec(2, environment.Observation)
}

func (c *counter) ActionSpec() environment.Spec {
	return environment.NewUnboundedSpec(1, environment.Action)
}

func (c *counter) DiscountSpec() environment.Spec {
	return environment.NewConstantSpec(0.9, environment.Discount)
}

func (c *counter) Seed(uint64) {}

func (c *counter) Close() error { return nil }

func (c *counter) SetTask(t environment.Task) error {
	c.tasks = append(c.tasks, t)
	return nil
}

// Render fills the image with (n, 2n, 3n)
func (c *counter) Render(camera string, height,
	width int) (*tensor.Dense, error) {
	if camera != "corner3" && camera != "top" {
		return nil, fmt.Errorf("render: unknown camera %v", camera)
	}
	c.renders++
	data := make([]uint8, height*width*3)
	for i := 0; i < len(data); i += 3 {
		data[i] = uint8(c.n)
		data[i+1] = uint8(2 * c.n)
		data[i+2] = uint8(3 * c.n)
	}
	return tensor.New(tensor.WithShape(height, width, 3),
		tensor.WithBacking(data)), nil
}

// plain hides everything but the Environment methods of its embedded
// environment
type plain struct {
	environment.Environment
}

func action() *mat.VecDense {
	return mat.NewVecDense(1, []float64{0.5})
}

func TestStateObservation(t *testing.T) {
	c := &counter{}
	s, step, err := NewStateObservation(c)
	require.NoError(t, err)
	assert.Same(t, step.Observation, step.State)

	step, done, err := s.Step(action())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, []float64{1, -1}, step.State.(*mat.VecDense).RawVector().Data)
	assert.Same(t, step.Observation, step.State)
	assert.Equal(t, 1, s.CurrentTimeStep().Number)

	assert.Equal(t, environment.State, s.StateSpec().Type)
	assert.Equal(t, 2, s.StateSpec().Len())
	assert.Equal(t, 2, s.ObservationSpec().Len())

	task := environment.Task{Name: "t", Params: []float64{1}}
	require.NoError(t, s.SetTask(task))
	assert.Equal(t, []environment.Task{task}, c.tasks)

	p, _, err := NewStateObservation(plain{&counter{}})
	require.NoError(t, err)
	assert.Error(t, p.SetTask(task))

	_, _, err = s.Step(mat.NewVecDense(3, nil))
	assert.Error(t, err)
}

func TestPixelObservationDefaults(t *testing.T) {
	c := &counter{}
	p, step, err := NewPixelObservation(c, PixelConfig{})
	require.NoError(t, err)

	assert.Equal(t, DefaultPixelConfig(), p.Config())
	assert.Equal(t, 96*96*3, step.Observation.Len())
	assert.True(t, p.ObservationSpec().Matches(step.Observation))
	assert.Equal(t, []int{96, 96, 3}, p.ObservationSpec().Dims)
	assert.Equal(t, 2, step.State.Len())
	assert.Equal(t, 2, p.StateSpec().Len())
	assert.Equal(t, 1, c.renders)

	step, _, err = p.Step(action())
	require.NoError(t, err)
	assert.Equal(t, 2, c.renders)
	assert.Equal(t, 1.0, step.Observation.AtVec(0))
	assert.Equal(t, 2.0, step.Observation.AtVec(1))
	assert.Equal(t, 3.0, step.Observation.AtVec(2))
	assert.Equal(t, 1.0, step.State.AtVec(0))
	assert.Equal(t, []int{96, 96, 3}, []int(p.Image().Shape()))

	step, err = p.Reset()
	require.NoError(t, err)
	assert.Equal(t, 3, c.renders)
	assert.Equal(t, 0.0, step.Observation.AtVec(0))
}

func TestPixelObservationGreyscale(t *testing.T) {
	c := &counter{}
	p, _, err := NewPixelObservation(c, PixelConfig{Height: 4, Width: 5,
		Channels: 1, Camera: "top"})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, _, err := p.Step(action())
		require.NoError(t, err)
	}
	step := p.CurrentTimeStep()
	require.Equal(t, 20, step.Observation.Len())

	// 0.299 * 10 + 0.587 * 20 + 0.114 * 30
	assert.Equal(t, 18.0, step.Observation.AtVec(19))
}

func TestPixelObservationErrors(t *testing.T) {
	_, _, err := NewPixelObservation(plain{&counter{}}, PixelConfig{})
	assert.Error(t, err)

	_, _, err = NewPixelObservation(&counter{}, PixelConfig{Channels: 4})
	assert.Error(t, err)

	_, _, err = NewPixelObservation(&counter{}, PixelConfig{Height: -1})
	assert.Error(t, err)

	_, _, err = NewPixelObservation(&counter{}, PixelConfig{Camera: "side"})
	assert.Error(t, err)
}

func TestPixelObservationSawyer(t *testing.T) {
	env, _, err := sawyer.New(sawyer.Push, sawyer.DefaultParams(sawyer.Push))
	require.NoError(t, err)
	defer env.Close()

	p, step, err := NewPixelObservation(env, PixelConfig{Height: 16,
		Width: 16})
	require.NoError(t, err)
	assert.Equal(t, 16*16*3, step.Observation.Len())
	assert.Equal(t, 14, step.State.Len())

	require.NoError(t, p.SetTask(environment.Task{
		Params: []float64{0.05, 0.65, -0.05, 0.85, 0.02},
	}))
	step, err = p.Reset()
	require.NoError(t, err)
	assert.InDelta(t, 0.05, step.State.AtVec(3), 1e-9)

	step, _, err = p.Step(mat.NewVecDense(sawyer.ActionDim, nil))
	require.NoError(t, err)
	assert.True(t, p.ObservationSpec().Matches(step.Observation))
	assert.Contains(t, step.Info, ts.InfoSuccess)
}

func TestTimeLimit(t *testing.T) {
	_, err := NewTimeLimit(&counter{}, 0)
	assert.Error(t, err)

	c := &counter{}
	l, err := NewTimeLimit(c, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, l.MaxEpisodeSteps())

	for episode := 0; episode < 2; episode++ {
		_, err := l.Reset()
		require.NoError(t, err)

		for i := 1; i <= 3; i++ {
			step, done, err := l.Step(action())
			require.NoError(t, err)
			assert.Equal(t, i == 3, done)
			assert.Equal(t, i == 3, step.Last())
			if i == 3 {
				assert.Equal(t, ts.Timeout, step.EndType())
			}
		}
	}
	assert.Equal(t, 2, c.resets)
	require.NoError(t, l.SetTask(environment.Task{}))
}

// writeDataset records one terminal episode of two transitions and one
// timed out episode of two transitions
func writeDataset(t *testing.T, dir string) {
	t.Helper()
	c := &counter{}
	w, err := expreplay.NewWriter(dir, "counter", c.ObservationSpec(),
		c.ActionSpec())
	require.NoError(t, err)

	vec := func(v float64) *mat.VecDense {
		return mat.NewVecDense(2, []float64{v, -v})
	}
	add := func(s, r, next float64, terminal, end bool) {
		require.NoError(t, w.Add(ts.Transition{
			State:     vec(s),
			Action:    mat.NewVecDense(1, []float64{s / 10}),
			Reward:    r,
			NextState: vec(next),
			Terminal:  terminal,
		}, end))
	}
	add(0, 1, 1, false, false)
	add(1, 2, 2, true, true)
	add(10, 3, 11, false, false)
	add(11, 4, 12, false, true)

	_, err = w.Write()
	require.NoError(t, err)
}

func TestReplayDataset(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	data, err := expreplay.Load(dir, expreplay.Latest)
	require.NoError(t, err)

	c := &counter{}
	r, err := NewReplayDataset(c, data)
	require.NoError(t, err)
	assert.Equal(t, 2, r.ObservationSpec().Len())
	assert.Equal(t, 1, r.ActionSpec().Len())

	step, err := r.Reset()
	require.NoError(t, err)
	assert.True(t, step.First())
	assert.Equal(t, 0.0, step.Observation.AtVec(0))
	assert.Nil(t, r.RecordedAction())

	step, done, err := r.Step(action())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 1.0, step.Reward)
	assert.Equal(t, 0.9, step.Discount)
	assert.Equal(t, 1.0, step.Observation.AtVec(0))
	assert.Equal(t, 1, step.Number)

	step, done, err = r.Step(action())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, ts.TerminalStateReached, step.EndType())
	assert.Equal(t, 2.0, step.Reward)
	assert.Equal(t, 0.0, step.Discount)
	assert.InDelta(t, 0.1, r.RecordedAction().AtVec(0), 1e-6)

	_, _, err = r.Step(action())
	assert.Error(t, err)
	assert.False(t, expreplay.IsExhausted(err))

	step, err = r.Reset()
	require.NoError(t, err)
	assert.Equal(t, 10.0, step.Observation.AtVec(0))

	step, done, err = r.Step(action())
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 11.0, step.Observation.AtVec(0))

	step, done, err = r.Step(action())
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, ts.DatasetExhausted, step.EndType())
	assert.Equal(t, 12.0, step.Observation.AtVec(0))
	assert.Equal(t, 4.0, step.Reward)

	_, err = r.Reset()
	assert.True(t, expreplay.IsExhausted(err))
	_, _, err = r.Step(action())
	assert.True(t, expreplay.IsExhausted(err))

	// The live environment is never used while replaying
	assert.Zero(t, c.resets)
	assert.Zero(t, c.steps)
	assert.Zero(t, c.renders)

	r.Rewind()
	step, err = r.Reset()
	require.NoError(t, err)
	assert.Equal(t, 0.0, step.Observation.AtVec(0))

	_, _, err = r.Step(mat.NewVecDense(2, nil))
	assert.Error(t, err)
}

func TestReplayDatasetSpecMismatch(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir)
	data, err := expreplay.Load(dir, expreplay.Latest)
	require.NoError(t, err)

	pixels, _, err := NewPixelObservation(&counter{}, PixelConfig{Height: 2,
		Width: 2})
	require.NoError(t, err)
	_, err = NewReplayDataset(pixels, data)
	assert.Error(t, err)
}
