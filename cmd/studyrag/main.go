// Package main implements the studyrag CLI: ingest course material into a
// workspace, then ask questions, summarize, drill flashcards and plan study time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"studyrag/internal/tui"
)

var (
	// configPath overrides the default config lookup
	configPath string
	// workspaceID scopes every command
	workspaceID string
	// metricsAddr serves /metrics while the command runs
	metricsAddr string
	version     = "dev"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "studyrag",
	Short: "Study assistant over your own course documents",
	Long: `studyrag indexes lecture notes and readings per workspace and answers
questions, writes study guides, generates flashcards and plans study days from them.

Examples:
  studyrag -w stats ingest week1.md week2.docx
  studyrag -w stats ask "What does geom_point draw?"
  studyrag -w stats flashcards generate --count 5`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (defaults to ./config.yaml or ~/.config/studyrag/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspaceID, "workspace", "w", "default", "Workspace identifier")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
	rootCmd.AddCommand(ingestCmd, askCmd, tuiCmd)
}

// withApp builds the application for one command invocation and tears it down
// afterwards. Interrupts cancel ctx.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	a.serveMetrics(cfg.Metrics.Addr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Extract, chunk and index documents into the workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				doc, err := a.service.IngestFile(ctx, workspaceID, path)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed++
					a.logger.Error("ingest failed", zap.String("path", path), zap.Error(err))
					fmt.Fprintf(out, "FAILED %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%d chunks\n", doc.ID, doc.Filename, doc.ChunkCount)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		})
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the workspace documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			ans, err := a.service.Ask(ctx, workspaceID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans)
			return nil
		})
	},
}

var historyLimit int

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive chat over the workspace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			history, err := a.service.ChatHistory(ctx, workspaceID, historyLimit)
			if err != nil {
				return err
			}
			m := tui.New(ctx, a.service, workspaceID, history, a.cfg.LLM.Timeout())
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		})
	},
}

func init() {
	tuiCmd.Flags().IntVar(&historyLimit, "history", 20, "Number of earlier exchanges to load")
}
