// Package experiment implements functionality for running an experiment
package experiment

import (
	"fmt"

	"github.com/samuelfneumann/goalenv/agent"
	"github.com/samuelfneumann/goalenv/agent/random"
	"github.com/samuelfneumann/goalenv/environment/envconfig"
	"github.com/samuelfneumann/goalenv/environment/wrappers"
	"github.com/samuelfneumann/goalenv/experiment/tracker"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments will track environment TimeSteps, caching each TimeStep
// in RAM to be later saved to disk. The Save() function
// will then take all cached data and save it to disk. This is usually
// performed after an experiment has been run. The Run() method will
// run all episodes util the maximum timestep limit is reached, or some
// other ending condition is reached. The RunEpisode() function will
// run a single episode.
type Experiment interface {
	Run() error
	RunEpisode() (bool, error) // Returns whether the experiment is over

	// Save all tracked data to disk
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)
}

type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// PolicyType names a policy which experiments can construct
type PolicyType string

const (
	RandomPolicy PolicyType = "random"
)

// Config represents a configuration of an experiment.
type Config struct {
	Type     Type             `json:"type" yaml:"type"`
	MaxSteps int              `json:"max_steps" yaml:"max_steps"`
	Policy   PolicyType       `json:"policy" yaml:"policy"`
	EnvConf  envconfig.Config `json:"env" yaml:"env"`
}

// CreatePolicy returns the policy described by the Config for the
// environment made
func (c Config) CreatePolicy(made envconfig.Made) (agent.Policy, error) {
	switch c.Policy {
	case RandomPolicy, "":
		p, err := random.NewUniform(made.Env.ActionSpec(), c.EnvConf.Seed)
		if err != nil {
			return nil, fmt.Errorf("createPolicy: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("createPolicy: no such policy %v", c.Policy)
}

// CreateExp returns the experiment described by the Config, along with
// the environment it runs on. Episodes of simulated environments are
// ended at the environment's step limit.
func (c Config) CreateExp(t ...tracker.Tracker) (Experiment, envconfig.Made,
	error) {
	if c.MaxSteps <= 0 {
		return nil, envconfig.Made{}, fmt.Errorf("createExp: max steps "+
			"must be positive \n\thave(%v)", c.MaxSteps)
	}

	made, err := c.EnvConf.Create()
	if err != nil {
		return nil, envconfig.Made{}, fmt.Errorf("createExp: %w", err)
	}

	_, limited := made.Env.(*wrappers.TimeLimit)
	if !limited && made.Kind != envconfig.OfflineMetaworld &&
		made.MaxEpisodeSteps > 0 {
		made.Env, err = wrappers.NewTimeLimit(made.Env, made.MaxEpisodeSteps)
		if err != nil {
			return nil, envconfig.Made{}, fmt.Errorf("createExp: %w", err)
		}
	}

	policy, err := c.CreatePolicy(made)
	if err != nil {
		made.Env.Close()
		return nil, envconfig.Made{}, fmt.Errorf("createExp: %w", err)
	}

	switch c.Type {
	case OnlineExp, "":
		o := NewOnline(made.Env, policy, c.MaxSteps, t...)
		o.SetLogger(c.EnvConf.Logger)
		return o, made, nil
	}

	made.Env.Close()
	return nil, envconfig.Made{}, fmt.Errorf("createExp: no such "+
		"experiment type %v", c.Type)
}
