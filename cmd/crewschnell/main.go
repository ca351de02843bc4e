package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/codefionn/crewschnell/internal/analyzer"
	"github.com/codefionn/crewschnell/internal/board"
	"github.com/codefionn/crewschnell/internal/config"
	"github.com/codefionn/crewschnell/internal/crew"
	"github.com/codefionn/crewschnell/internal/history"
	"github.com/codefionn/crewschnell/internal/llm"
	"github.com/codefionn/crewschnell/internal/logger"
	"github.com/codefionn/crewschnell/internal/permission"
	"github.com/codefionn/crewschnell/internal/risk"
	"github.com/codefionn/crewschnell/internal/team"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dryRunExecutor stands in for the host's execution primitives: it prints the
// approved action instead of performing it.
type dryRunExecutor struct{}

func (dryRunExecutor) Execute(ctx context.Context, action risk.Action, details risk.Details) (string, error) {
	target := details.Path
	if details.Command != "" {
		target = details.Command
	}
	if details.URL != "" {
		target = details.URL
	}
	fmt.Printf("[exec] %s %s\n", action, target)
	return fmt.Sprintf("%s %s: ok", action, target), nil
}

func run() (err error) {
	var (
		configPath = flag.String("config", config.GetConfigPath(), "path to the config file")
		project    = flag.String("project", "", "project identity (overrides config)")
		mode       = flag.String("mode", "", "permission mode: ask_always, auto_approve, yolo")
		sqlitePath = flag.String("sqlite", "", "persist the board to this SQLite file instead of gob files")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error, none")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *project != "" {
		cfg.Project = *project
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()
	log := logger.Global()

	logger.Info("crewschnell starting, project=%s mode=%s", cfg.Project, cfg.Mode)

	requirements, err := gatherRequirements(flag.Args())
	if err != nil {
		return err
	}
	if len(requirements) == 0 {
		return errors.New("no requirements given (pass them as arguments or on stdin)")
	}

	apiKey := os.Getenv(cfg.APIKeyEnv)
	client, err := llm.NewAnthropicClient(apiKey, cfg.Model)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Components.
	lists := risk.DefaultLists().WithCommands(cfg.AllowedCommands, cfg.DeniedCommands)
	policy := permission.DefaultPolicy()
	policy.Mode = permission.ParseMode(cfg.Mode)
	policy.Timeout = time.Duration(cfg.ApprovalTimeoutSecs) * time.Second
	policy.AllowedCommands = cfg.AllowedCommands
	policy.DeniedCommands = cfg.DeniedCommands
	policy.AllowedPaths = cfg.AllowedPaths
	policy.DeniedPaths = cfg.DeniedPaths
	policy.Lists = lists
	gate := permission.NewGate(policy, log)

	reg := team.NewRegistry(team.DefaultRoles())
	an := analyzer.New(reg.WeightTable())
	b := board.New(cfg.Project, log)

	var store board.Store
	if *sqlitePath != "" {
		sqlStore, err := board.NewSQLiteStore(*sqlitePath)
		if err != nil {
			return fmt.Errorf("failed to open board database: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	} else {
		fileStore, err := board.NewFileStore(filepath.Join(cfg.StateDir, "boards"))
		if err != nil {
			return fmt.Errorf("failed to open board store: %w", err)
		}
		store = fileStore
	}
	if err := b.Load(store); err != nil {
		logger.Warn("ignoring prior board state: %v", err)
	}
	b.ResetInProgress()

	hist := history.NewManager(cfg.TokenBudget, log,
		history.WithEstimator(history.NewTiktokenEstimator(cfg.Model)),
		history.WithIdleTTL(time.Duration(cfg.SessionTTLMinutes)*time.Minute))
	hist.StartSweeper(ctx, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	invoker := crew.NewLLMInvoker(client, 0, 0.7)
	orch := crew.New(crew.Options{
		SessionID:   cfg.Project,
		MaxParallel: cfg.MaxParallelTasks,
		MaxRetries:  cfg.MaxRetries,
		TokenBudget: cfg.TokenBudget,
		KeepRounds:  cfg.KeepRounds,
		Store:       store,
	}, b, gate, an, reg, hist, invoker, dryRunExecutor{}, log)

	// Live config reload pushes mode changes into the running gate.
	if watcher, werr := config.NewWatcher(*configPath, log, func(c *config.Config) {
		gate.SetMode(permission.ParseMode(c.Mode))
	}); werr == nil {
		go watcher.Run(ctx)
	} else {
		logger.Warn("config watcher unavailable: %v", werr)
	}

	for _, req := range requirements {
		if _, err := orch.SubmitRequirement(req); err != nil {
			return fmt.Errorf("failed to submit requirement: %w", err)
		}
	}

	go printEvents(orch.Events())
	go answerApprovals(ctx, gate)

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := b.Stats()
	fmt.Printf("\n%d features: %d completed, %d failed, %d blocked (%.0f%% done)\n",
		stats.Total, stats.Completed, stats.Failed, stats.Blocked, stats.CompletionRate*100)
	return nil
}

// gatherRequirements takes requirements from the argument list, or one per
// line from stdin when no arguments are given and stdin is piped.
func gatherRequirements(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	info, err := os.Stdin.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice != 0 {
		return nil, nil
	}

	var out []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return out, nil
}

func printEvents(events <-chan crew.Event) {
	for e := range events {
		switch e.Type {
		case crew.EventPermissionRequested, crew.EventPermissionResolved:
			// Rendered by the approval prompt loop.
		default:
			fmt.Printf("[%s] %s %s %s\n", e.Timestamp.Format("15:04:05"), e.Type, e.TaskID, e.Detail)
		}
	}
}

// answerApprovals prompts on the terminal for every pending permission
// request.
func answerApprovals(ctx context.Context, gate *permission.Gate) {
	pending, unsubscribe := gate.Subscribe()
	defer unsubscribe()

	reader := bufio.NewReader(os.Stdin)
	seen := make(map[string]bool)

	for {
		select {
		case reqs, ok := <-pending:
			if !ok {
				return
			}
			for _, req := range reqs {
				if seen[req.ID] {
					continue
				}
				seen[req.ID] = true

				fmt.Printf("\napproval needed [%s risk %s]: %s\n", req.Type, req.Risk, req.Target())
				fmt.Print("approve? [y]es / [n]o / [a]lways / n[e]ver: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				answer := strings.ToLower(strings.TrimSpace(line))

				approve := answer == "y" || answer == "yes" || answer == "a" || answer == "always"
				applyToSimilar := answer == "a" || answer == "always" || answer == "e" || answer == "never"
				if rerr := gate.Resolve(req.ID, approve, applyToSimilar); rerr != nil {
					logger.Debug("request %s already resolved: %v", req.ID, rerr)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
