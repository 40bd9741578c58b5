package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fplpilot/internal/app"
	"fplpilot/internal/autopilot"
	"fplpilot/internal/config"
	"fplpilot/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgPath      string
	instructions string
	timeout      time.Duration
	cfg          *config.Config
	closers      []io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "fplpilot",
	Short:         "Autopilot for a fantasy football season",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.ResolvePath(cfgPath))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return setupLogging(cfg.App)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		for _, c := range closers {
			_ = c.Close()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, MCP tools and the advance schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Infof("✓ config loaded (env=%s, season=%s)", cfg.App.Env, cfg.Season.Label)
		a, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}
		return a.Run(cmd.Context())
	},
}

var showCmd = &cobra.Command{
	Use:   "show <user>",
	Short: "Print a manager's season state",
	Args:  cobra.ExactArgs(1),
	RunE: withCore(func(ctx context.Context, svc *autopilot.Service, user string) (any, error) {
		st, err := svc.State(ctx, user)
		if err != nil {
			return nil, err
		}
		return map[string]any{"phase": st.Phase(), "total_points": st.TotalPoints(), "state": st}, nil
	}),
}

var draftCmd = &cobra.Command{
	Use:   "draft <user>",
	Short: "Draft the initial squad",
	Args:  cobra.ExactArgs(1),
	RunE: withCore(func(ctx context.Context, svc *autopilot.Service, user string) (any, error) {
		return svc.Draft(ctx, user, opts())
	}),
}

var advanceCmd = &cobra.Command{
	Use:   "advance [user]",
	Short: "Play unprocessed gameweeks; every known user when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runCore(cmd, "", func(ctx context.Context, svc *autopilot.Service, _ string) (any, error) {
				return svc.AdvanceAll(ctx)
			})
		}
		return runCore(cmd, args[0], func(ctx context.Context, svc *autopilot.Service, user string) (any, error) {
			return svc.Advance(ctx, user, opts())
		})
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <user>",
	Short: "Decide the current gameweek again",
	Args:  cobra.ExactArgs(1),
	RunE: withCore(func(ctx context.Context, svc *autopilot.Service, user string) (any, error) {
		return svc.Regenerate(ctx, user, opts())
	}),
}

var redraftCmd = &cobra.Command{
	Use:   "redraft <user>",
	Short: "Replace the squad during gameweek 1",
	Args:  cobra.ExactArgs(1),
	RunE: withCore(func(ctx context.Context, svc *autopilot.Service, user string) (any, error) {
		return svc.Redraft(ctx, user, opts())
	}),
}

var refreshCmd = &cobra.Command{
	Use:   "refresh-points <user>",
	Short: "Recompute realized points for committed gameweeks",
	Args:  cobra.ExactArgs(1),
	RunE: withCore(func(ctx context.Context, svc *autopilot.Service, user string) (any, error) {
		n, err := svc.RefreshPoints(ctx, user)
		return map[string]int{"updated": n}, err
	}),
}

var lineupCmd = &cobra.Command{
	Use:   "lineup <user>",
	Short: "Suggest the best legal lineup for the current squad",
	Args:  cobra.ExactArgs(1),
	RunE: withCore(func(ctx context.Context, svc *autopilot.Service, user string) (any, error) {
		return svc.SuggestLineup(ctx, user)
	}),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Timeout for one-shot commands")
	for _, c := range []*cobra.Command{draftCmd, advanceCmd, regenerateCmd, redraftCmd} {
		c.Flags().StringVarP(&instructions, "instructions", "i", "", "Free-text guidance for the oracle")
	}
	rootCmd.AddCommand(serveCmd, showCmd, draftCmd, advanceCmd, regenerateCmd, redraftCmd, refreshCmd, lineupCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("fplpilot: %v", err)
	}
}

func opts() autopilot.Options {
	return autopilot.Options{Instructions: strings.TrimSpace(instructions)}
}

type coreFunc func(ctx context.Context, svc *autopilot.Service, user string) (any, error)

func withCore(fn coreFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return runCore(cmd, args[0], fn)
	}
}

// runCore builds the service without the servers, runs fn and prints its result as JSON.
func runCore(cmd *cobra.Command, user string, fn coreFunc) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	core, err := app.NewAppBuilder(cfg).BuildCore(ctx)
	if err != nil {
		return err
	}
	defer core.Close()
	out, err := fn(ctx, core.Service, user)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func setupLogging(cfg config.AppConfig) error {
	logger.SetLevel(cfg.LogLevel)
	logger.SetFormat(cfg.LogFormat)
	if f, err := openLog(cfg.LogPath); err != nil {
		return fmt.Errorf("open log file: %w", err)
	} else if f != nil {
		mw := io.MultiWriter(os.Stderr, f)
		log.SetOutput(mw)
		logger.SetOutput(mw)
		closers = append(closers, f)
	}
	logger.SetLLMWriter(nil)
	if cfg.LLMDump {
		f, err := openLog(cfg.LLMLog)
		if err != nil {
			return fmt.Errorf("open llm log: %w", err)
		}
		if f != nil {
			logger.SetLLMWriter(f)
			closers = append(closers, f)
		}
	}
	return nil
}

func openLog(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
