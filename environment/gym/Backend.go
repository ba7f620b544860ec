//go:build gym

package gym

import (
	"fmt"

	python "github.com/DataDog/go-python3"
	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/environment/envconfig"
)

// init registers the D4RL suites, which become available to gym.make
// once the d4rl Python module is imported
func init() {
	d4rl := python.PyImport_ImportModule("d4rl")
	if d4rl == nil {
		if python.PyErr_Occurred() != nil {
			python.PyErr_Print()
		}
		return
	}
	defer d4rl.DecRef()

	for _, c := range []envconfig.Catalog{envconfig.D4RLGym,
		envconfig.D4RLAnt, envconfig.D4RLAdroit} {
		envconfig.RegisterBackend(c, Make)
	}
}

// Make is an envconfig.Backend which constructs GymEnvs. The seed and
// discount kwargs are accepted.
func Make(name string, kw envconfig.Kwargs) (environment.Environment, int,
	error) {
	for key := range kw {
		if key != "seed" && key != "discount" {
			return nil, 0, fmt.Errorf("make: unexpected kwarg %v", key)
		}
	}

	seed, err := kw.Uint("seed", 0)
	if err != nil {
		return nil, 0, fmt.Errorf("make: %w", err)
	}
	discount, err := kw.Float("discount", 1.0)
	if err != nil {
		return nil, 0, fmt.Errorf("make: %w", err)
	}

	e, _, err := New(name, discount, seed)
	if err != nil {
		return nil, 0, fmt.Errorf("make: %w", err)
	}
	return e, e.MaxEpisodeSteps(), nil
}
