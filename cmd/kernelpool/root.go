package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/born-ml/kernelpool/internal/config"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "kernelpool",
		Short:         "Run and inspect the kernelpool CPU scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	addGlobalFlags(cmd.PersistentFlags())
	cmd.AddCommand(newVersionCommand(), newInfoCommand(a), newBenchCommand(a))
	return cmd
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("engine", "ring", `scheduler engine, "ring" or "slot"`)
	fs.Int("threads", -1, "worker threads excluding the caller, -1 for one per core")
	fs.Int("queue-capacity", 1024, "task nodes of the ring engine")
	fs.IntSlice("affinity", nil, "CPU ids to pin workers to, round robin")
	fs.Bool("denormal-as-zero", false, "flush denormals to zero on worker threads")
	fs.String("log-level", "info", "log level")
	fs.String("log-format", "console", `log encoding, "console" or "json"`)
}

// flagKeys maps flags to the configuration keys they override.
var flagKeys = map[string]string{
	"engine":           "pool.engine",
	"threads":          "pool.threads",
	"queue-capacity":   "pool.queue_capacity",
	"affinity":         "pool.affinity",
	"denormal-as-zero": "pool.denormal_as_zero",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

func (a *app) setup(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := a.v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	if file, _ := fs.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	a.cfg = cfg
	a.log = logger
	if a.v.ConfigFileUsed() != "" {
		zap.S().Named("config").Debugw("loaded config file", "path", a.v.ConfigFileUsed())
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kernelpool %s\n", version)
		},
	}
}
