// Package commands implements the robohal command line.
package commands

import (
	"fmt"

	"github.com/arloliu/go-robohal/backends/console"
	"github.com/arloliu/go-robohal/backends/hardware"
	"github.com/arloliu/go-robohal/backends/sim"
	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/config"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
	"github.com/spf13/cobra"
)

var versionInfo = "dev"

// SetVersionInfo sets the version reported by the version command.
func SetVersionInfo(v, c, d string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

var environments = map[string]*hal.Environment{
	config.EnvHardware:   hardware.Environment,
	config.EnvConsole:    console.Environment,
	config.EnvSimulation: sim.Environment,
}

// options are the global flags and the configuration they resolve to.
type options struct {
	configPath string
	env        string

	cfg         *config.Config
	environment *hal.Environment
}

// Execute runs the command line with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the robohal command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "robohal",
		Short: "Discover and drive robot boards",
		Long: `robohal discovers the boards of a robot and drives their outputs.

Boards are driven in one of three environments: real hardware over USB,
a console where a person answers every input, or a simulation.`,
		Version:       versionInfo,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.resolve(cmd); err != nil {
				return failure(cmd.ErrOrStderr(), err)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "robot configuration file")
	root.PersistentFlags().StringVarP(&opts.env, "env", "e", "", "environment: hardware, console or sim (overrides the configuration)")

	root.AddCommand(
		newListCommand(opts),
		newSafeCommand(opts),
		newPowerCommand(opts),
		newMotorCommand(opts),
		newServoCommand(opts),
		newVersionCommand(),
	)

	return root
}

// resolve loads the configuration and applies it to the logger and the backends.
func (o *options) resolve(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("env") {
		cfg.Environment = o.env
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger.SetLevel(cfg.Level())
	if err := hardware.SetReadTimeout(cfg.ReadTimeout); err != nil {
		return err
	}
	for _, kind := range boards.Kinds() {
		if err := sim.SetSerials(kind, cfg.ExpectedSerials(kind)...); err != nil {
			return err
		}
	}

	o.cfg = cfg
	o.environment = environments[cfg.EnvironmentName()]
	if o.environment == nil {
		return errcode.New(errcode.InvalidParams, "robohal", "no environment called %q", cfg.Environment)
	}

	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// The version command needs no configuration.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "robohal %s\n", versionInfo)
		},
	}
}
