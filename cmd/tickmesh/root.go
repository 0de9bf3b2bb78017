package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/hupe1980/tickmesh"
	"github.com/hupe1980/tickmesh/config"
	"github.com/hupe1980/tickmesh/core"
	"github.com/hupe1980/tickmesh/logging"
	"github.com/hupe1980/tickmesh/scheduler"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitBlocked = 2
)

// app holds global flags and the streams commands write to.
type app struct {
	root      string
	cfgFile   string
	logLevel  string
	logFormat string

	stdout io.Writer
	stderr io.Writer

	// newMesh is replaced in tests.
	newMesh func(cfg *config.Config, optFns ...func(o *tickmesh.Options)) (*tickmesh.Mesh, error)
	// human answers human stages when no --message is given.
	human scheduler.HumanInput
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string) int {
	a := &app{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		newMesh: tickmesh.New,
		human:   scheduler.NewTerminalInput(),
	}
	return a.run(args)
}

func (a *app) run(args []string) int {
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	if hint := core.Hint(err); hint != "" {
		fmt.Fprintf(a.stderr, "Hint: %s\n", hint)
	}
	if errors.Is(err, core.ErrAwaitingInput) {
		return exitBlocked
	}
	return exitFatal
}

func (a *app) rootCmd() *cobra.Command {
	var message string
	rootCmd := &cobra.Command{
		Use:   "tickmesh",
		Short: "Tick-driven multi-agent orchestration",
		Long: `tickmesh advances a shared multi-agent simulation one stage per run.

Every tick plays one of five stages:
  1 human-kickoff     capture a human prompt
  2 meta-analysis     run the meta agents over the prompt
  3 human-plus-meta   capture a human prompt next to the meta analysis
  4 actor-action      run the actor agents over the routed input
  5 meta-review       run the meta agents over the actor outputs

Commands:
  setup    create tickmesh.yaml, the state file and the agent tree
  step     advance one stage (default)
  status   show the current tick and the next stage`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.step(cmd, message)
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.root, "root", "", "Root directory (default: $"+config.EnvRoot+" or .)")
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Config file (default: $"+config.EnvConfig+" or <root>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text, json)")
	rootCmd.Flags().StringVarP(&message, "message", "m", "", "Human prompt for human stages")

	rootCmd.AddCommand(a.stepCmd(), a.setupCmd(), a.statusCmd())
	return rootCmd
}

// mesh loads the configuration and wires a Mesh with CLI logging and
// interrupt handling.
func (a *app) mesh() (*tickmesh.Mesh, error) {
	cfg, err := config.Load(a.root, a.cfgFile)
	if err != nil {
		return nil, err
	}
	logger := a.logger(cfg)
	return a.newMesh(cfg, func(o *tickmesh.Options) {
		o.Logger = logger
		o.HumanInput = a.human
		o.AgentContext = func(parent context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(parent, os.Interrupt)
		}
	})
}

func (a *app) logger(cfg *config.Config) logging.Logger {
	level := cfg.Log.Level
	if strings.TrimSpace(a.logLevel) != "" {
		level = a.logLevel
	}
	format := cfg.Log.Format
	if strings.TrimSpace(a.logFormat) != "" {
		format = strings.ToLower(a.logFormat)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(level),
		Format: format,
		Output: a.stderr,
	})
}
