package main

import (
	"context"
	"os"

	"github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"tickrec/internal/ops"
)

var (
	configPath  string
	storageRoot string
	storageMode string
	pyroscopeAt string

	loaded   ops.Loaded
	profiler *pyroscope.Profiler
)

var rootCmd = &cobra.Command{
	Use:           "tickrec <command>",
	Short:         "Capture market data into a daily binary log and replay it",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		fc := ops.Default()
		if configPath != "" {
			var err error
			if fc, err = ops.Decode(configPath); err != nil {
				return err
			}
		}
		if err := applyOverrides(cmd, &fc); err != nil {
			return err
		}

		var err error
		if loaded, err = fc.Resolve(); err != nil {
			return errors.Wrap(err, "resolve config")
		}
		return startProfiler(loaded.File.Profiling)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			_ = profiler.Stop()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.toml or .json)")
	rootCmd.PersistentFlags().StringVar(&storageRoot, "root", "", "storage root, overrides the config file")
	rootCmd.PersistentFlags().StringVar(&storageMode, "mode", "", "storage mode: single|multi")
	rootCmd.PersistentFlags().StringVar(&pyroscopeAt, "pyroscope", "", "pyroscope server address, enables profiling")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logs.Errorf("tickrec: %+v", err)
		os.Exit(1)
	}
}

func applyOverrides(cmd *cobra.Command, fc *ops.FileConfig) error {
	flags := rootCmd.PersistentFlags()
	if flags.Changed("root") {
		fc.Storage.Root = storageRoot
	}
	if flags.Changed("mode") {
		fc.Storage.Mode = storageMode
	}
	if flags.Changed("pyroscope") {
		fc.Profiling.Server = pyroscopeAt
	}
	if apply, ok := overrides[cmd.Name()]; ok {
		return apply(cmd, fc)
	}
	return nil
}

// overrides holds the per-command flag handlers.
var overrides = map[string]func(*cobra.Command, *ops.FileConfig) error{}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}

func startProfiler(cfg ops.ProfilingConfig) error {
	if cfg.Server == "" {
		return nil
	}
	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.Application,
		ServerAddress:   cfg.Server,
		Tags: map[string]string{
			"root": loaded.File.Storage.Root,
		},
		Logger: emptyLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return errors.Wrap(err, "start pyroscope")
	}
	profiler = p
	logs.Infof("profiling to %s as %s", cfg.Server, cfg.Application)
	return nil
}
