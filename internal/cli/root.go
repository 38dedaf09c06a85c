// Package cli implements the pdfrag command line: offline extraction of a
// single document into markdown, chunks and an outline.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dgallion1/pdfrag/internal/config"
)

const keyConfig = "config"

// app carries state shared by subcommands once the root pre-run has loaded
// configuration.
type app struct {
	v   *viper.Viper
	cfg config.Config
	log *zap.Logger
}

// NewRootCmd builds the pdfrag command tree on its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}

	root := &cobra.Command{
		Use:           "pdfrag",
		Short:         "Turn PDFs into section-aware chunks for retrieval",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.log.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.String(keyConfig, "", "config file (yaml, json or toml); defaults to $"+config.EnvConfigFile)
	pf.String(config.KeyLogLevel, "info", "log level (debug, info, warn, error)")
	pf.String(config.KeyLogFormat, "console", "log format (console or json)")

	root.AddCommand(newExtractCmd(a), newOutlineCmd(a))
	return root
}

// load binds the executing command's flags, reads configuration and builds
// the logger.
func (a *app) load(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if file, _ := cmd.Flags().GetString(keyConfig); file != "" {
		a.v.SetConfigFile(file)
	}
	config.SetDefaults(a.v)
	a.v.SetDefault(config.KeyLogFormat, "console")

	cfg, err := config.Read(a.v)
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}
