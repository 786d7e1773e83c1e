// Command v-axion runs a monologue actor tree against a goal: it wires
// the decision provider, the tool catalog, the web dashboard, and the
// drop-in injection watcher around one orchestrator, then drains
// everything on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/djav1985/v-axion-ai/config"
	"github.com/djav1985/v-axion-ai/core"
	"github.com/djav1985/v-axion-ai/dashboard"
	"github.com/djav1985/v-axion-ai/engine"
	"github.com/djav1985/v-axion-ai/inject"
	"github.com/djav1985/v-axion-ai/provider/anthropic"
	"github.com/djav1985/v-axion-ai/tools"
)

const shutdownGrace = 30 * time.Second

var (
	flagConfig    string
	flagAddr      string
	flagInjectDir string
	flagNoDash    bool
)

var rootCmd = &cobra.Command{
	Use:   "v-axion [goal...]",
	Short: "Recursive monologue actor runtime",
	Long: `v-axion runs a tree of goal-driven monologue actors. The root actor
receives the goal; it can reply to you, spawn sub-actors, call tools,
and sleep between cycles. A web dashboard shows the live tree.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(strings.Join(args, " "))
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "dashboard listen address (overrides config)")
	rootCmd.Flags().StringVar(&flagInjectDir, "inject-dir", "", "drop-in injection directory (overrides config)")
	rootCmd.Flags().BoolVar(&flagNoDash, "no-dash", false, "disable the web dashboard")
}

func run(goal string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.DashboardAddr = flagAddr
	}
	if flagInjectDir != "" {
		cfg.InjectDir = flagInjectDir
	}
	if flagNoDash {
		cfg.DashboardAddr = ""
	}

	registry, err := tools.Builtin(cfg.FilesAllowed, cfg.ShellAllowed)
	if err != nil {
		return fmt.Errorf("build tool catalog: %w", err)
	}
	prov := anthropic.New(cfg.Model, anthropic.WithTools(registry.Describe()))

	var dash *dashboard.Server
	orch, err := engine.New(cfg, prov,
		engine.WithInvoker(registry),
		engine.WithOnUser(func(msg core.Message) {
			fmt.Printf("[%s] %s\n", msg.SenderID, msg.Content)
			if dash != nil {
				dash.OnUser(msg)
			}
		}),
	)
	if err != nil {
		return err
	}

	if cfg.DashboardAddr != "" {
		dash = dashboard.New(orch, cfg.DashboardAddr)
		if err := dash.Start(); err != nil {
			return fmt.Errorf("start dashboard: %w", err)
		}
	}

	var watcher *inject.Watcher
	if cfg.InjectDir != "" {
		watcher, err = inject.NewWatcher(cfg.InjectDir, orch)
		if err != nil {
			return fmt.Errorf("start inject watcher: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("start inject watcher: %w", err)
		}
	}

	rootID, err := orch.Submit(goal)
	if err != nil {
		return err
	}
	log.Printf("[MAIN] root actor %s running, goal=%q", rootID, goal)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Printf("[MAIN] signal received, draining")

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			log.Printf("[MAIN] stop inject watcher: %v", err)
		}
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		log.Printf("[MAIN] shutdown incomplete: %v", err)
	}
	if dash != nil {
		if err := dash.Stop(drainCtx); err != nil {
			log.Printf("[MAIN] stop dashboard: %v", err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
