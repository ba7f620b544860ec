// Package envconfig constructs environments by name. Names are either
// the simulated tasks of this module (e.g. sawyer_push_image,
// maze2d-umaze-v1), offline datasets (e.g. offline_metaworld_push) or
// members of a Catalog which are simulated by a registered Backend.
//
// Environment configurations in this package are YAML and JSON
// serializable.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/samuelfneumann/goalenv/environment/wrappers"
	"gopkg.in/yaml.v3"
)

// Config implements a specific configuration of a named environment
type Config struct {
	Name     string  `json:"name" yaml:"name"`
	Seed     uint64  `json:"seed" yaml:"seed"`
	Discount float64 `json:"discount,omitempty" yaml:"discount,omitempty"`

	// EpisodeCutoff, if positive, replaces the step limit of the
	// environment's episodes
	EpisodeCutoff int `json:"episode_cutoff,omitempty" yaml:"episode_cutoff,omitempty"`

	Kwargs Kwargs `json:"kwargs,omitempty" yaml:"kwargs,omitempty"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

// NewConfig returns a new environment Config
func NewConfig(name string, seed uint64, kw Kwargs) Config {
	return Config{
		Name:   name,
		Seed:   seed,
		Kwargs: kw,
	}
}

// LoadConfig reads a Config from the YAML file at path
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("loadConfig: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("loadConfig: could not parse %v: %w",
			path, err)
	}
	if c.Name == "" {
		return Config{}, fmt.Errorf("loadConfig: %v does not name an "+
			"environment", path)
	}
	return c, nil
}

// kwargs returns the configuration's kwargs with the seed and discount
// merged in. Values set in Kwargs take precedence.
func (c Config) kwargs() Kwargs {
	kw := c.Kwargs.clone()
	if !kw.Has("seed") {
		kw["seed"] = c.Seed
	}
	if c.Discount > 0 && !kw.Has("discount") {
		kw["discount"] = c.Discount
	}
	return kw
}

// Create returns the environment described by the Config
func (c Config) Create() (Made, error) {
	made, err := makeEnv(c.Name, c.kwargs(), c.Logger)
	if err != nil {
		return Made{}, fmt.Errorf("create: %w", err)
	}

	if c.EpisodeCutoff > 0 {
		limited, err := wrappers.NewTimeLimit(made.Env, c.EpisodeCutoff)
		if err != nil {
			made.Env.Close()
			return Made{}, fmt.Errorf("create: %w", err)
		}
		made.Env = limited
		made.MaxEpisodeSteps = c.EpisodeCutoff
	}
	return made, nil
}
