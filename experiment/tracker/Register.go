package tracker

import (
	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/timestep"
)

// registeredTracker registers an Environment with some Tracker so
// that the Tracker tracks data from the registered Environment only.
//
// The Track() method calls that of the embedded Tracker using the most
// recent TimeStep of the registered Environment, and the argument to
// registeredTracker.Track() is ignored.
//
// This may be useful if an experiment is run using an Environment
// wrapper but the data of the wrapped Environment should be tracked.
// For example, the raw states of a PixelObservation's wrapped
// environment.
type registeredTracker struct {
	Tracker
	env environment.Environment
}

// Register registers a new Tracker with an Environment, to track data
// from the registered Environment only.
//
// Note: the underlying concrete type of the registered Tracker is
// lost when registering an Environment with a Tracker.
func Register(t Tracker, env environment.Environment) Tracker {
	return &registeredTracker{t, env}
}

// Track calls Track() on the embedded Tracker using the most recent
// TimeStep from the registered Environment.
func (r *registeredTracker) Track(timestep.TimeStep) {
	r.Tracker.Track(r.env.CurrentTimeStep())
}
