package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/samuelfneumann/goalenv/environment/envconfig"
	"github.com/samuelfneumann/goalenv/experiment"
	"github.com/samuelfneumann/goalenv/experiment/trackers"
	"github.com/samuelfneumann/goalenv/utils/progressbar"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

var (
	configPath string
	seed       uint64
	logLevel   string

	steps     int
	recordDir string
	outDir    string
	progress  bool

	rootCmd = &cobra.Command{
		Use:   "goalenv",
		Short: "Construct and roll out goal-conditioned environments",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
				&slog.HandlerOptions{Level: level})))
			return nil
		},
		SilenceUsage: true,
	}

	catalogCmd = &cobra.Command{
		Use:   "catalog",
		Short: "List the environment names which can be made",
		Args:  cobra.NoArgs,
		RunE:  runCatalog,
	}

	makeCmd = &cobra.Command{
		Use:   "make [name]",
		Short: "Make an environment and print its metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMake,
	}

	rolloutCmd = &cobra.Command{
		Use:   "rollout [name]",
		Short: "Roll out a uniform random policy in an environment",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRollout,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML environment configuration")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0,
		"seed of the environment and policy")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")

	rolloutCmd.Flags().IntVar(&steps, "steps", 1000,
		"number of environment steps")
	rolloutCmd.Flags().StringVar(&recordDir, "record", "",
		"directory to record the rollout to as a replay dataset")
	rolloutCmd.Flags().StringVar(&outDir, "out", "",
		"directory to save per-episode returns, lengths and successes to")
	rolloutCmd.Flags().BoolVar(&progress, "progress", false,
		"display a progress bar")

	rootCmd.AddCommand(catalogCmd, makeCmd, rolloutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig returns the environment configuration given by the flags
// and the optional name argument
func loadConfig(cmd *cobra.Command, args []string) (envconfig.Config, error) {
	var c envconfig.Config
	if configPath != "" {
		var err error
		if c, err = envconfig.LoadConfig(configPath); err != nil {
			return envconfig.Config{}, err
		}
	}

	if len(args) > 0 {
		c.Name = args[0]
	}
	if c.Name == "" {
		return envconfig.Config{}, fmt.Errorf("no environment named, give " +
			"a name or a --config")
	}
	if cmd.Flags().Changed("seed") || configPath == "" {
		c.Seed = seed
	}
	c.Logger = slog.Default()
	return c, nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, c := range envconfig.Catalogs() {
		backend := "no backend"
		if envconfig.HasBackend(c) {
			backend = "backend"
		}
		fmt.Fprintf(w, "%v\t%v\t%v\n", c.Name, backend,
			strings.Join(c.Envs, " "))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	for _, name := range envconfig.Names() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runMake(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	made, err := c.Create()
	if err != nil {
		return err
	}
	defer made.Env.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "name\t%v\n", made.Name)
	fmt.Fprintf(w, "kind\t%v\n", made.Kind)
	fmt.Fprintf(w, "obs_dim\t%v\n", made.ObsDim)
	fmt.Fprintf(w, "max_episode_steps\t%v\n", made.MaxEpisodeSteps)
	fmt.Fprintf(w, "goal_conditioned\t%v\n", made.GoalConditioned)
	fmt.Fprintf(w, "observation\t%v\n", made.Env.ObservationSpec().Dims)
	fmt.Fprintf(w, "action\t%v\n", made.Env.ActionSpec().Dims)
	fmt.Fprintf(w, "environment\t%v\n", made.Env)
	return w.Flush()
}

func runRollout(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}
	returns := trackers.NewReturn(filepath.Join(outDir, "returns.bin"))
	lengths := trackers.NewEpisodeLength(filepath.Join(outDir, "lengths.bin"))
	success := trackers.NewSuccess(filepath.Join(outDir, "success.bin"))

	conf := experiment.Config{
		Type:     experiment.OnlineExp,
		MaxSteps: steps,
		Policy:   experiment.RandomPolicy,
		EnvConf:  c,
	}
	exp, made, err := conf.CreateExp(returns, lengths, success)
	if err != nil {
		return err
	}
	defer made.Env.Close()

	var recorder *trackers.Recorder
	if recordDir != "" {
		recorder, err = trackers.NewRecorder(recordDir, made.Name,
			made.Env.ObservationSpec(), made.Env.ActionSpec())
		if err != nil {
			return err
		}
		exp.Register(recorder)
	}

	online := exp.(*experiment.Online)
	if progress {
		online.SetProgressBar(progressbar.NewManualProgressBar(
			cmd.ErrOrStderr(), 40, steps))
	}

	if err := exp.Run(); err != nil {
		return err
	}

	if outDir != "" {
		if err := exp.Save(); err != nil {
			return err
		}
	} else if recorder != nil {
		if err := recorder.Save(); err != nil {
			return err
		}
	}
	if recorder != nil {
		slog.Info("recorded rollout", "dir", recordDir,
			"run_id", recorder.RunID())
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "steps\t%v\n", online.Steps())
	fmt.Fprintf(w, "episodes\t%v\n", len(lengths.Data()))
	if len(returns.Data()) > 0 {
		mean, std := stat.MeanStdDev(returns.Data(), nil)
		fmt.Fprintf(w, "return\t%.3f ± %.3f\n", mean, std)
		fmt.Fprintf(w, "episode_length\t%.1f\n", stat.Mean(lengths.Data(), nil))
		fmt.Fprintf(w, "success_rate\t%.3f\n", success.Rate())
		fmt.Fprintf(w, "final_distance\t%.3f\n",
			stat.Mean(success.FinalDistances(), nil))
	}
	return w.Flush()
}
