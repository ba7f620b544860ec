package envconfig

// Catalog is a named, read-only list of environment names used for
// validation and dispatch
type Catalog struct {
	Name string
	Envs []string
}

// Contains returns whether name is listed in the catalog
func (c Catalog) Contains(name string) bool {
	for _, env := range c.Envs {
		if env == name {
			return true
		}
	}
	return false
}

// Catalogs of environment names, grouped by domain
var (
	Metaworld50 = Catalog{"metaworld50", []string{
		"assembly",
		"basketball",
		"bin-picking",
		"box-close",
		"button-press-topdown",
		"button-press-topdown-wall",
		"button-press",
		"button-press-wall",
		"coffee-button",
		"coffee-pull",
		"coffee-push",
		"dial-turn",
		"disassemble",
		"door-close",
		"door-lock",
		"door-open",
		"door-unlock",
		"hand-insert",
		"drawer-close",
		"drawer-open",
		"faucet-open",
		"faucet-close",
		"hammer",
		"handle-press-side",
		"handle-press",
		"handle-pull-side",
		"handle-pull",
		"lever-pull",
		"peg-insert-side",
		"pick-place-wall",
		"pick-out-of-hole",
		"reach",
		"push-back",
		"push",
		"pick-place",
		"plate-slide",
		"plate-slide-side",
		"plate-slide-back",
		"plate-slide-back-side",
		"peg-unplug-side",
		"soccer",
		"stick-push",
		"stick-pull",
		"push-wall",
		"reach-wall",
		"shelf-place",
		"sweep-into",
		"sweep",
		"window-open",
		"window-close",
	}}

	Metaworld10 = Catalog{"metaworld10", []string{
		"reach",
		"push",
		"pick-place",
		"door-open",
		"drawer-close",
		"button-press-topdown",
		"peg-insert-side",
		"window-open",
		"sweep",
		"basketball",
	}}

	Fetch = Catalog{"fetch", []string{
		"FetchSlide", "FetchPickAndPlace", "FetchReach", "FetchPush",
	}}

	DMC = Catalog{"dmc", []string{
		"cartpole-swingup", "finger-spin", "cheetah-run", "reacher-easy",
		"walker-walk", "walker-run",
	}}

	D4RLAnt = Catalog{"d4rl_ant", []string{
		"antmaze-umaze-v2", "antmaze-umaze-diverse-v2", "antmaze-medium-play-v2",
		"antmaze-medium-diverse-v2", "antmaze-large-play-v2",
		"antmaze-large-diverse-v2",
	}}

	D4RLMaze2d = Catalog{"d4rl_maze2d", []string{
		"maze2d-open-dense-v0", "maze2d-umaze-dense-v1", "maze2d-medium-dense-v1",
		"maze2d-large-dense-v1",
	}}

	D4RLGym = Catalog{"d4rl_gym", []string{
		"halfcheetah-medium-v2", "halfcheetah-medium-replay-v2",
		"walker2d-medium-v2", "walker2d-medium-replay-v2", "hopper-medium-v2",
		"hopper-medium-replay-v2", "ant-medium-v2", "ant-medium-replay-v2",
	}}

	D4RLAdroit = Catalog{"d4rl_adroit", []string{
		"hammer-human-v1", "hammer-cloned-v1",
	}}
)

// Catalogs returns every catalog
func Catalogs() []Catalog {
	return []Catalog{Metaworld50, Metaworld10, Fetch, DMC, D4RLAnt,
		D4RLMaze2d, D4RLGym, D4RLAdroit}
}
