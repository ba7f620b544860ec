package experiment

import (
	"fmt"
	"log/slog"

	"github.com/samuelfneumann/goalenv/agent"
	env "github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/experiment/tracker"
	"github.com/samuelfneumann/goalenv/expreplay"
	ts "github.com/samuelfneumann/goalenv/timestep"
	"github.com/samuelfneumann/goalenv/utils/progressbar"
)

// Online is an Experiment that runs a policy online only. No offline
// evaluation is performed.
type Online struct {
	env.Environment
	policy       agent.Policy
	maxSteps     int
	currentSteps int
	episodes     int
	trackers     []tracker.Tracker

	progress *progressbar.ManualProgressBar
	logger   *slog.Logger
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given policy. The steps parameter determines how
// many timesteps the experiment is run for, and the t parameter
// is a slice of tracker.Tracker which determine what data is saved.
func NewOnline(e env.Environment, p agent.Policy, steps int,
	t ...tracker.Tracker) *Online {
	return &Online{
		Environment: e,
		policy:      p,
		maxSteps:    steps,
		trackers:    t,
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger of the experiment
func (o *Online) SetLogger(l *slog.Logger) {
	if l != nil {
		o.logger = l
	}
}

// SetProgressBar sets a progress bar which is advanced on each step
func (o *Online) SetProgressBar(p *progressbar.ManualProgressBar) {
	o.progress = p
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// Steps returns the number of steps taken so far
func (o *Online) Steps() int {
	return o.currentSteps
}

// Episodes returns the number of episodes started so far
func (o *Online) Episodes() int {
	return o.episodes
}

// RunEpisode runs a single episode of the experiment and returns
// whether the experiment is over. An experiment over a replayed dataset
// is over once the dataset is exhausted.
func (o *Online) RunEpisode() (bool, error) {
	if o.currentSteps >= o.maxSteps {
		return true, nil
	}

	step, err := o.Environment.Reset()
	if expreplay.IsExhausted(err) {
		o.logger.Info("dataset exhausted", "steps", o.currentSteps,
			"episodes", o.episodes)
		return true, nil
	} else if err != nil {
		return true, fmt.Errorf("runEpisode: %w", err)
	}
	o.episodes++
	o.track(step)

	for !step.Last() && o.currentSteps < o.maxSteps {
		o.currentSteps++

		action := o.policy.SelectAction(step)
		next, _, err := o.Environment.Step(action)
		if err != nil {
			return true, fmt.Errorf("runEpisode: %w", err)
		}

		end := next.Last() || o.currentSteps >= o.maxSteps
		transition := ts.NewTransition(step, action, next)
		if err := o.trackTransition(transition, end); err != nil {
			return true, fmt.Errorf("runEpisode: %w", err)
		}
		o.track(next)
		step = next

		if o.progress != nil {
			o.progress.Increment()
			o.progress.Display()
		}
	}

	o.logger.Debug("episode finished", "episode", o.episodes,
		"length", step.Number, "end", step.EndType(),
		"steps", o.currentSteps)

	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run() error {
	for {
		ended, err := o.RunEpisode()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if ended {
			break
		}
	}

	if o.progress != nil {
		o.progress.Close()
	}
	return nil
}

// Save saves the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// track tracks the current timestep by caching its data in each tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}

// trackTransition passes a transition to each TransitionTracker
func (o *Online) trackTransition(t ts.Transition, episodeEnd bool) error {
	for _, tr := range o.trackers {
		if recorder, ok := tr.(tracker.TransitionTracker); ok {
			if err := recorder.TrackTransition(t, episodeEnd); err != nil {
				return err
			}
		}
	}
	return nil
}
