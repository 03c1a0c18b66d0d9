package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stratdesk/internal/api"
	"stratdesk/internal/artifact"
	"stratdesk/internal/config"
	"stratdesk/internal/logging"
	"stratdesk/internal/sandbox"
	"stratdesk/internal/skills"
	"stratdesk/internal/workspace"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stratdesk",
	Short: "StratDesk document subsystem - sandboxed scripts, skills, and artifacts",
	Long: `StratDesk's document subsystem lets a conversational agent produce
durable, downloadable output: session-scoped sandboxed script execution,
a skill registry matched against free text, and an incremental builder
for spreadsheet and slide-deck artifacts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return logging.Initialize(logging.Settings{
			DebugMode:  cfg.Logging.DebugMode,
			Dir:        cfg.Logging.Dir,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
			Categories: cfg.Logging.Categories,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd runs the HTTP boundary.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve artifact retrieval and skill management over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := artifact.NewStore(cfg.Paths.ArtifactsRoot)
		if err != nil {
			return err
		}
		defer store.Close()

		reg, err := skills.NewRegistry(cfg.Paths.SkillsRoot)
		if err != nil {
			return err
		}
		if err := reg.EnsureSeeds(); err != nil {
			return err
		}
		if err := reg.Watch(); err != nil {
			logger.Warn("skills watcher unavailable", zap.Error(err))
		}
		defer reg.Close()

		mux := http.NewServeMux()
		api.NewHandlers(store, reg, logger).Register(mux)

		srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		logger.Info("serving", zap.String("addr", cfg.Server.Addr))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

// skillsCmd groups skill registry operations.
var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Inspect and match skills",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all skills with their trigger phrases",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		summaries, err := reg.List()
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Printf("%-20s %s\n", s.Name, s.Title)
			if s.Description != "" {
				fmt.Printf("  %s\n", s.Description)
			}
			if len(s.Triggers) > 0 {
				fmt.Printf("  triggers: %s\n", strings.Join(s.Triggers, ", "))
			}
		}
		return nil
	},
}

var skillsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a skill's prompt block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		prompt, err := reg.GetPrompt(args[0])
		if err != nil {
			return err
		}
		fmt.Println(prompt)
		return nil
	},
}

var skillsDetectCmd = &cobra.Command{
	Use:   "detect [text]",
	Short: "Show which skills the given text would trigger",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		matched, err := reg.DetectTriggers(strings.Join(args, " "))
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			fmt.Println("no skills triggered")
			return nil
		}
		for _, m := range matched {
			fmt.Printf("%s\t%s\n", m.Name, m.Title)
		}
		return nil
	},
}

var (
	execSession string
	execTimeout time.Duration
)

// execCmd runs a script file in the sandbox.
var execCmd = &cobra.Command{
	Use:   "exec [script.go]",
	Short: "Run a script in a session-scoped sandbox",
	Long: `Interprets a Go script confined to the session's workspace. The script
must define:

    func Run(ws sandbox.Workspace) error

and may import a whitelisted stdlib subset plus the injected sandbox package.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scriptText, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}

		manager := workspace.NewManager(cfg.Paths.WorkspaceRoot)
		executor := sandbox.NewExecutor(manager, cfg.Sandbox.MaxOutputBytes)

		timeout := execTimeout
		if timeout == 0 {
			timeout, err = cfg.SandboxTimeout()
			if err != nil {
				return err
			}
		}

		res, err := executor.Execute(cmd.Context(), execSession, string(scriptText), timeout)
		if err != nil {
			return err
		}
		if res.Stdout != "" {
			fmt.Print(res.Stdout)
		}
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
		logger.Info("script finished",
			zap.Bool("success", res.Success),
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("timed_out", res.TimedOut),
			zap.Duration("duration", res.Duration))
		if !res.Success {
			os.Exit(res.ExitCode)
		}
		return nil
	},
}

// artifactsCmd groups artifact store operations.
var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect stored artifacts",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := artifact.NewStore(cfg.Paths.ArtifactsRoot)
		if err != nil {
			return err
		}
		defer store.Close()

		all, err := store.List()
		if err != nil {
			return err
		}
		for _, meta := range all {
			fmt.Printf("%s  %-12s  %8d bytes  %s  %s\n",
				meta.ID, meta.Type, meta.Size, meta.CreatedAt.Format(time.RFC3339), meta.Title)
		}
		return nil
	},
}

func openRegistry() (*skills.Registry, error) {
	reg, err := skills.NewRegistry(cfg.Paths.SkillsRoot)
	if err != nil {
		return nil, err
	}
	if err := reg.EnsureSeeds(); err != nil {
		return nil, err
	}
	return reg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "stratdesk.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	execCmd.Flags().StringVar(&execSession, "session", "cli", "session id for the sandbox workspace")
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "execution timeout (default from config)")

	skillsCmd.AddCommand(skillsListCmd, skillsShowCmd, skillsDetectCmd)
	artifactsCmd.AddCommand(artifactsListCmd)
	rootCmd.AddCommand(serveCmd, skillsCmd, execCmd, artifactsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
