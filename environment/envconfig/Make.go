package envconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samuelfneumann/goalenv/environment"
	"github.com/samuelfneumann/goalenv/environment/pointmaze"
	"github.com/samuelfneumann/goalenv/environment/sawyer"
	"github.com/samuelfneumann/goalenv/environment/wrappers"
	"github.com/samuelfneumann/goalenv/expreplay"
)

// Name prefixes of offline environments
const (
	OfflinePrefix          = "offline_"
	OfflineMetaworldPrefix = OfflinePrefix + "metaworld_"
)

// ErrUnsupported is matched by errors reporting an unknown environment
// name
var ErrUnsupported = errors.New("unsupported environment")

// ErrNoBackend reports that an environment name is catalogued but no
// backend able to simulate it has been registered
var ErrNoBackend = errors.New("no backend registered")

// UnsupportedError reports an environment name which matches no known
// name or catalog
type UnsupportedError struct {
	Name string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported environment: %v", e.Name)
}

// Is reports whether target is ErrUnsupported
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

// Kind enumerates the ways an environment can be constructed
type Kind int

const (
	SawyerPush Kind = iota
	SawyerPushImage
	SawyerDrawer
	SawyerDrawerImage
	SawyerWindow
	SawyerWindowImage
	SawyerBin
	SawyerBinImage
	PointMaze
	OfflineGym
	OfflineMetaworld
	External
)

var kindNames = map[Kind]string{
	SawyerPush:        "sawyer_push",
	SawyerPushImage:   "sawyer_push_image",
	SawyerDrawer:      "sawyer_drawer",
	SawyerDrawerImage: "sawyer_drawer_image",
	SawyerWindow:      "sawyer_window",
	SawyerWindowImage: "sawyer_window_image",
	SawyerBin:         "sawyer_bin",
	SawyerBinImage:    "sawyer_bin_image",
	PointMaze:         "point_maze",
	OfflineGym:        "offline_gym",
	OfflineMetaworld:  "offline_metaworld",
	External:          "external",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// GoalConditioned returns whether environments of kind k include a goal
// in their observations
func (k Kind) GoalConditioned() bool {
	return k != OfflineGym
}

// Made is a constructed environment along with its metadata
type Made struct {
	Env  environment.Environment
	Name string
	Kind Kind

	// ObsDim is half the observation width: the width of the state or
	// goal half of goal-conditioned observations
	ObsDim int

	MaxEpisodeSteps int
	GoalConditioned bool
}

// Backend constructs named environments which are simulated outside
// this module, returning the environment and the step limit of its
// episodes
type Backend func(name string, kw Kwargs) (environment.Environment, int,
	error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// RegisterBackend registers b to construct the environments of catalog
// c, replacing any previously registered backend
func RegisterBackend(c Catalog, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[c.Name] = b
}

// HasBackend returns whether a backend is registered for catalog c
func HasBackend(c Catalog) bool {
	_, ok := backendFor(c)
	return ok
}

func backendFor(c Catalog) (Backend, bool) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[c.Name]
	return b, ok
}

// makeBackend constructs name through the backend registered for c
func makeBackend(c Catalog, name string, kw Kwargs) (environment.Environment,
	int, error) {
	b, ok := backendFor(c)
	if !ok {
		return nil, 0, fmt.Errorf("%v: %w for catalog %v", name, ErrNoBackend,
			c.Name)
	}
	return b(name, kw)
}

// sawyerTasks maps names of simulated sawyer tasks to their kinds
var sawyerTasks = map[string]Kind{
	"sawyer_push":         SawyerPush,
	"sawyer_push_image":   SawyerPushImage,
	"sawyer_drawer":       SawyerDrawer,
	"sawyer_drawer_image": SawyerDrawerImage,
	"sawyer_window":       SawyerWindow,
	"sawyer_window_image": SawyerWindowImage,
	"sawyer_bin":          SawyerBin,
	"sawyer_bin_image":    SawyerBinImage,
}

// metaworldTasks maps the catalogued manipulation tasks which have a
// simulator in this module to their task kind
var metaworldTasks = map[string]sawyer.Kind{
	"push":         sawyer.Push,
	"drawer-open":  sawyer.Drawer,
	"drawer-close": sawyer.Drawer,
	"window-open":  sawyer.Window,
	"window-close": sawyer.Window,
	"bin-picking":  sawyer.Bin,
}

// externalCatalogs are the catalogs simulated only by registered
// backends
var externalCatalogs = []Catalog{Fetch, DMC, D4RLAnt, D4RLAdroit}

// resolve returns the Kind of a named environment, along with the
// argument passed to its constructor
func resolve(name string) (Kind, string, error) {
	if kind, ok := sawyerTasks[name]; ok {
		return kind, name, nil
	}
	if D4RLMaze2d.Contains(name) {
		return PointMaze, name, nil
	}
	if strings.HasPrefix(name, OfflineMetaworldPrefix) {
		task := strings.TrimPrefix(name, OfflineMetaworldPrefix)
		if Metaworld50.Contains(task) {
			return OfflineMetaworld, task, nil
		}
	} else if strings.HasPrefix(name, OfflinePrefix) {
		base := strings.TrimPrefix(name, OfflinePrefix)
		if D4RLGym.Contains(base) {
			return OfflineGym, base, nil
		}
	}
	for _, c := range externalCatalogs {
		if c.Contains(name) {
			return External, name, nil
		}
	}
	return 0, "", &UnsupportedError{Name: name}
}

// constructor builds the environment of a Kind from its argument,
// returning the environment and its episode step limit
type constructor func(arg string, kw Kwargs,
	logger *slog.Logger) (environment.Environment, int, error)

var constructors = map[Kind]constructor{
	SawyerPush:        sawyerTask(sawyer.Push, false),
	SawyerPushImage:   sawyerTask(sawyer.Push, true),
	SawyerDrawer:      sawyerTask(sawyer.Drawer, false),
	SawyerDrawerImage: sawyerTask(sawyer.Drawer, true),
	SawyerWindow:      sawyerTask(sawyer.Window, false),
	SawyerWindowImage: sawyerTask(sawyer.Window, true),
	SawyerBin:         sawyerTask(sawyer.Bin, false),
	SawyerBinImage:    sawyerTask(sawyer.Bin, true),
	PointMaze:         makePointMaze,
	OfflineGym:        makeOfflineGym,
	OfflineMetaworld:  makeOfflineMetaworld,
	External:          makeExternal,
}

// Make constructs the named environment configured by kw
func Make(name string, kw Kwargs) (Made, error) {
	return makeEnv(name, kw, nil)
}

func makeEnv(name string, kw Kwargs, logger *slog.Logger) (Made, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if kw == nil {
		kw = Kwargs{}
	}

	kind, arg, err := resolve(name)
	if err != nil {
		return Made{}, fmt.Errorf("make: %w", err)
	}

	env, maxSteps, err := constructors[kind](arg, kw, logger)
	if err != nil {
		return Made{}, fmt.Errorf("make: %v: %w", name, err)
	}

	made := Made{
		Env:             env,
		Name:            name,
		Kind:            kind,
		ObsDim:          env.ObservationSpec().Len() / 2,
		MaxEpisodeSteps: maxSteps,
		GoalConditioned: kind.GoalConditioned(),
	}

	logger.Info("made environment", "name", name, "kind", kind,
		"obs_dim", made.ObsDim, "max_episode_steps", made.MaxEpisodeSteps,
		"goal_conditioned", made.GoalConditioned)
	return made, nil
}

// Names returns every environment name accepted by Make, sorted
func Names() []string {
	var names []string
	for name := range sawyerTasks {
		names = append(names, name)
	}
	names = append(names, D4RLMaze2d.Envs...)
	for _, task := range Metaworld50.Envs {
		names = append(names, OfflineMetaworldPrefix+task)
	}
	for _, base := range D4RLGym.Envs {
		names = append(names, OfflinePrefix+base)
	}
	for _, c := range externalCatalogs {
		names = append(names, c.Envs...)
	}
	sort.Strings(names)
	return names
}

// checkKeys returns an error if kw sets a key not in allowed
func checkKeys(kw Kwargs, allowed ...string) error {
	for key := range kw {
		found := false
		for _, a := range allowed {
			if key == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unexpected kwarg %v", key)
		}
	}
	return nil
}

// sawyerKeys are the kwargs accepted by each sawyer task
var sawyerKeys = map[Kind][]string{
	SawyerPush: {"goal_min_x", "goal_max_x", "goal_min_y", "goal_max_y"},
	SawyerPushImage: {"goal_min_x", "goal_max_x", "goal_min_y",
		"goal_max_y", "camera", "rand_y", "start_at_obj"},
	SawyerDrawer:      {},
	SawyerDrawerImage: {"camera", "task"},
	SawyerWindow:      {},
	SawyerWindowImage: {"camera", "task", "start_at_obj"},
	SawyerBin:         {},
	SawyerBinImage:    {"camera", "start_at_obj", "alias"},
}

func sawyerTask(kind sawyer.Kind, image bool) constructor {
	return func(name string, kw Kwargs,
		logger *slog.Logger) (environment.Environment, int, error) {
		allowed := append([]string{"seed", "discount", "threshold"},
			sawyerKeys[sawyerTasks[name]]...)
		if err := checkKeys(kw, allowed...); err != nil {
			return nil, 0, err
		}

		p, err := sawyerParams(kind, kw)
		if err != nil {
			return nil, 0, err
		}
		p.Image = image
		p.Logger = logger

		env, _, err := sawyer.New(kind, p)
		if err != nil {
			return nil, 0, err
		}
		return env, env.MaxEpisodeSteps(), nil
	}
}

// sawyerParams returns the default parameters of kind overridden by kw
func sawyerParams(kind sawyer.Kind, kw Kwargs) (sawyer.Params, error) {
	p := sawyer.DefaultParams(kind)

	floats := []struct {
		key string
		v   *float64
	}{
		{"goal_min_x", &p.GoalMinX},
		{"goal_max_x", &p.GoalMaxX},
		{"goal_min_y", &p.GoalMinY},
		{"goal_max_y", &p.GoalMaxY},
		{"threshold", &p.Threshold},
		{"discount", &p.Discount},
	}
	for _, f := range floats {
		v, err := kw.Float(f.key, *f.v)
		if err != nil {
			return sawyer.Params{}, err
		}
		*f.v = v
	}

	bools := []struct {
		key string
		v   *bool
	}{
		{"start_at_obj", &p.StartAtObj},
		{"rand_y", &p.RandY},
		{"alias", &p.Alias},
	}
	for _, b := range bools {
		v, err := kw.Bool(b.key, *b.v)
		if err != nil {
			return sawyer.Params{}, err
		}
		*b.v = v
	}

	var err error
	if p.Camera, err = kw.String("camera", p.Camera); err != nil {
		return sawyer.Params{}, err
	}
	if p.Task, err = kw.String("task", p.Task); err != nil {
		return sawyer.Params{}, err
	}
	if p.Seed, err = kw.Uint("seed", p.Seed); err != nil {
		return sawyer.Params{}, err
	}
	return p, nil
}

// makePointMaze builds a maze2d environment. The layout and reward
// density are read from the name, e.g. maze2d-umaze-dense-v1.
func makePointMaze(name string, kw Kwargs,
	logger *slog.Logger) (environment.Environment, int, error) {
	if err := checkKeys(kw, "seed", "discount"); err != nil {
		return nil, 0, err
	}

	parts := strings.Split(name, "-")
	if len(parts) < 2 {
		return nil, 0, fmt.Errorf("no layout in %v", name)
	}
	layout, err := pointmaze.ParseLayout(parts[1])
	if err != nil {
		return nil, 0, err
	}

	p := pointmaze.Params{
		Layout: layout,
		Dense:  strings.Contains(name, "-dense"),
		Logger: logger,
	}
	if p.Discount, err = kw.Float("discount", 1.0); err != nil {
		return nil, 0, err
	}
	if p.Seed, err = kw.Uint("seed", 0); err != nil {
		return nil, 0, err
	}

	env, _, err := pointmaze.New(p)
	if err != nil {
		return nil, 0, err
	}
	return env, layout.MaxEpisodeSteps(), nil
}

func makeOfflineGym(base string, kw Kwargs,
	_ *slog.Logger) (environment.Environment, int, error) {
	return makeBackend(D4RLGym, base, kw)
}

func makeExternal(name string, kw Kwargs,
	_ *slog.Logger) (environment.Environment, int, error) {
	for _, c := range externalCatalogs {
		if c.Contains(name) {
			return makeBackend(c, name, kw)
		}
	}
	return nil, 0, &UnsupportedError{Name: name}
}

// Observation types of offline manipulation datasets
const (
	ObsPixels = "pixels"
	ObsState  = "state"
)

// makeOfflineMetaworld replays the dataset at the dataset_path kwarg
// through the observation wrapper of a live manipulation task
func makeOfflineMetaworld(task string, kw Kwargs,
	logger *slog.Logger) (environment.Environment, int, error) {
	if err := checkKeys(kw, "dataset_path", "checkpoint", "obs_type",
		"height", "width", "n_channels", "camera_name", "seed",
		"discount"); err != nil {
		return nil, 0, err
	}

	path, err := kw.String("dataset_path", "")
	if err != nil {
		return nil, 0, err
	}
	if path == "" {
		return nil, 0, fmt.Errorf("kwarg dataset_path is required")
	}
	checkpoint, err := kw.Int("checkpoint", expreplay.Latest)
	if err != nil {
		return nil, 0, err
	}
	obsType, err := kw.String("obs_type", ObsState)
	if err != nil {
		return nil, 0, err
	}

	live, maxSteps, err := liveMetaworld(task, kw, logger)
	if err != nil {
		return nil, 0, err
	}

	var env environment.Environment
	switch obsType {
	case ObsPixels:
		var c wrappers.PixelConfig
		if c.Height, err = kw.Int("height", 0); err != nil {
			return nil, 0, err
		}
		if c.Width, err = kw.Int("width", 0); err != nil {
			return nil, 0, err
		}
		if c.Channels, err = kw.Int("n_channels", 0); err != nil {
			return nil, 0, err
		}
		if c.Camera, err = kw.String("camera_name", ""); err != nil {
			return nil, 0, err
		}
		env, _, err = wrappers.NewPixelObservation(live, c)

	case ObsState:
		env, _, err = wrappers.NewStateObservation(live)

	default:
		err = fmt.Errorf("unknown obs_type %v", obsType)
	}
	if err != nil {
		live.Close()
		return nil, 0, err
	}

	data, err := expreplay.Load(path, checkpoint)
	if err != nil {
		env.Close()
		return nil, 0, err
	}
	replay, err := wrappers.NewReplayDataset(env, data)
	if err != nil {
		env.Close()
		return nil, 0, err
	}

	logger.Debug("loaded replay dataset", "task", task, "path", path,
		"records", data.Records(), "episodes", data.Episodes(),
		"run_id", data.Metadata().RunID)
	return replay, maxSteps, nil
}

// liveKeys are the offline manipulation kwargs which configure the live
// environment rather than the replayed dataset
var liveKeys = []string{"seed", "discount"}

// liveMetaworld builds the live environment whose specifications a
// replayed manipulation dataset takes
func liveMetaworld(task string, kw Kwargs,
	logger *slog.Logger) (environment.Environment, int, error) {
	kind, ok := metaworldTasks[task]
	if !ok {
		return makeBackend(Metaworld50, task, kw.only(liveKeys...))
	}

	p := sawyer.DefaultParams(kind)
	p.Logger = logger
	var err error
	if p.Seed, err = kw.Uint("seed", 0); err != nil {
		return nil, 0, err
	}
	if p.Discount, err = kw.Float("discount", p.Discount); err != nil {
		return nil, 0, err
	}

	env, _, err := sawyer.New(kind, p)
	if err != nil {
		return nil, 0, err
	}
	return env, env.MaxEpisodeSteps(), nil
}
