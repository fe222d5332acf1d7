package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/channels"
	"github.com/dotsetgreg/daybook/pkg/config"
	"github.com/dotsetgreg/daybook/pkg/conversation"
	"github.com/dotsetgreg/daybook/pkg/digest"
	"github.com/dotsetgreg/daybook/pkg/httpapi"
	"github.com/dotsetgreg/daybook/pkg/insights"
	"github.com/dotsetgreg/daybook/pkg/logger"
	"github.com/dotsetgreg/daybook/pkg/memory"
)

const defaultSession = "cli:default"

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func executeCLI() error {
	root := buildRootCommand(true)
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var showVersion bool
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "daybook",
		Short: "Journal insights, strategic reports, and a rule-based assistant",
		Long: strings.TrimSpace(`daybook keeps one note per day and reads patterns out of it.

Use CLI commands to edit notes, analyze a year, print the strategic report,
ask the assistant, serve the HTTP API, or run the Discord gateway with its
scheduled digest.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to config.json")

	root.AddCommand(newOnboardCommand(opts))
	root.AddCommand(newAskCommand(opts))
	root.AddCommand(newAnalyzeCommand(opts))
	root.AddCommand(newReportCommand(opts))
	root.AddCommand(newNoteCommand(opts))
	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newGatewayCommand(opts))
	root.AddCommand(newHistoryCommand(opts))
	root.AddCommand(newStatusCommand(opts))
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		docsCmd := newDocsCommand(func() *cobra.Command { return buildRootCommand(false) })
		root.AddCommand(docsCmd)
	}

	return root
}

func newOnboardCommand(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Write a default config and create the workspace",
		Example: strings.Join([]string{
			"  daybook onboard",
			"  daybook onboard --force",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				fmt.Fprintf(out, "Config already exists at %s\n", opts.configPath)
				fmt.Fprint(out, "Overwrite? (y/n): ")
				response, readErr := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if readErr != nil && !errors.Is(readErr, io.EOF) {
					return fmt.Errorf("read input: %w", readErr)
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			cfg := config.DefaultConfig()
			if err := config.SaveConfig(opts.configPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			if err := os.MkdirAll(filepath.Join(cfg.WorkspacePath(), "state"), 0o755); err != nil {
				return fmt.Errorf("create workspace: %w", err)
			}

			fmt.Fprintf(out, "%s is ready!\n", appName)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. Write today's note: daybook note set", time.Now().Format("2006-01-02"), "\"...\"")
			fmt.Fprintln(out, "  2. Ask a question:     daybook ask -m \"summary this month\"")
			fmt.Fprintln(out, "  3. (Gateway mode) Add your Discord bot token to channels.discord.token in", opts.configPath)
			fmt.Fprintln(out, "  4. Check readiness:    daybook status")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config without asking")
	return cmd
}

func newAskCommand(opts *rootOptions) *cobra.Command {
	var (
		message    string
		sessionKey string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask the journal assistant (one-shot or interactive)",
		Example: strings.Join([]string{
			"  daybook ask",
			"  daybook ask -m \"important commitments this week\"",
			"  daybook ask -s cli:work -m \"summary last month\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if debug {
				logger.SetLevel(logger.DEBUG)
				fmt.Fprintln(cmd.OutOrStdout(), "🔍 Debug mode enabled")
			}

			gw := a.gateway(bus.NewMessageBus())
			if strings.TrimSpace(message) != "" {
				answer, err := gw.Ask(cmd.Context(), sessionKey, message)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", answer)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Interactive mode (type exit or Ctrl+C to leave)\n\n", appName)
			interactiveMode(cmd.Context(), gw, sessionKey)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Ask one question and exit")
	cmd.Flags().StringVarP(&sessionKey, "session", "s", defaultSession, "Session key")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func interactiveMode(ctx context.Context, gw *conversation.Gateway, sessionKey string) {
	prompt := fmt.Sprintf("%s You: ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".daybook_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ctx, gw, sessionKey, os.Stdin, os.Stdout)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !answerLine(ctx, gw, sessionKey, line, os.Stdout) {
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, gw *conversation.Gateway, sessionKey string, in io.Reader, out io.Writer) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprintf(out, "%s You: ", appName)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}
		if !answerLine(ctx, gw, sessionKey, line, out) {
			return
		}
	}
}

// answerLine handles one REPL line. It returns false when the user leaves.
func answerLine(ctx context.Context, gw *conversation.Gateway, sessionKey, line string, out io.Writer) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if isExitWord(input) {
		fmt.Fprintln(out, "Goodbye!")
		return false
	}

	answer, err := gw.Ask(ctx, sessionKey, input)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return true
	}
	fmt.Fprintf(out, "\n%s\n\n", answer)
	return true
}

func newAnalyzeCommand(opts *rootOptions) *cobra.Command {
	var (
		year   int
		format string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Show aggregate statistics for all notes or one year",
		Example: strings.Join([]string{
			"  daybook analyze",
			"  daybook analyze --year 2024",
			"  daybook analyze --year 2024 --format yaml",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("year") {
				if year < 1 || year > 9999 {
					return fmt.Errorf("--year must be between 1 and 9999")
				}
				return renderYearly(cmd.OutOrStdout(), format, insights.AggregateYear(snap, year))
			}
			return renderAggregate(cmd.OutOrStdout(), format, insights.Aggregate(snap))
		},
	}

	cmd.Flags().IntVarP(&year, "year", "y", 0, "Restrict the analysis to one calendar year")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "Output format: text, json or yaml")
	return cmd
}

func newReportCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the strategic report (one block per month)",
		Example: strings.Join([]string{
			"  daybook report",
			"  daybook report --format json",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return renderReport(cmd.OutOrStdout(), format, insights.BuildStrategicReport(snap))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", formatText, "Output format: text, json or yaml")
	return cmd
}

func newNoteCommand(opts *rootOptions) *cobra.Command {
	noteRoot := &cobra.Command{
		Use:   "note",
		Short: "Show, write, and flag day notes",
	}

	noteRoot.AddCommand(&cobra.Command{
		Use:     "show <YYYY-MM-DD>",
		Short:   "Show the note for a day",
		Args:    cobra.ExactArgs(1),
		Example: "  daybook note show 2024-06-11",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.journal.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printNote(cmd.OutOrStdout(), n.Key(), n.Text, n.Important)
			return nil
		},
	})

	noteRoot.AddCommand(&cobra.Command{
		Use:     "set <YYYY-MM-DD> <text...>",
		Short:   "Replace the text of a day note",
		Args:    cobra.MinimumNArgs(2),
		Example: "  daybook note set 2024-06-11 \"Dentist at 3pm\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.journal.SetText(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printNote(cmd.OutOrStdout(), n.Key(), n.Text, n.Important)
			return nil
		},
	})

	var unset bool
	important := &cobra.Command{
		Use:   "important <YYYY-MM-DD>",
		Short: "Mark a day as important",
		Args:  cobra.ExactArgs(1),
		Example: strings.Join([]string{
			"  daybook note important 2024-06-11",
			"  daybook note important 2024-06-11 --unset",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.journal.SetImportant(cmd.Context(), args[0], !unset)
			if err != nil {
				return err
			}
			printNote(cmd.OutOrStdout(), n.Key(), n.Text, n.Important)
			return nil
		},
	}
	important.Flags().BoolVar(&unset, "unset", false, "Clear the important flag instead")
	noteRoot.AddCommand(important)

	return noteRoot
}

func printNote(w io.Writer, key, text string, important bool) {
	marker := "  "
	if important {
		marker = "⭐"
	}
	fmt.Fprintln(w, headingStyle.Render(marker+" "+key))
	if text == "" {
		fmt.Fprintln(w, labelStyle.Render("(empty)"))
		return
	}
	fmt.Fprintln(w, text)
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Serve the HTTP API",
		Example: "  daybook serve --config ./config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := httpapi.NewServer(a.journal, a.gateway(bus.NewMessageBus()), logger.Zap())
			fmt.Fprintf(cmd.OutOrStdout(), "✓ HTTP API listening on http://%s\n", a.cfg.Addr())
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
			return server.ListenAndServe(ctx, a.cfg.Addr())
		},
	}
}

func newGatewayCommand(opts *rootOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Run the Discord gateway, digest scheduler, and HTTP API",
		Example: strings.Join([]string{
			"  daybook gateway",
			"  daybook gateway --debug",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if debug {
				logger.SetLevel(logger.DEBUG)
				fmt.Fprintln(cmd.OutOrStdout(), "🔍 Debug mode enabled")
			}
			return runGateway(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runGateway(parent context.Context, a *app, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	msgBus := bus.NewMessageBus()
	gw := a.gateway(msgBus)

	channelManager, err := channels.NewManager(a.cfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}
	fmt.Fprintf(out, "✓ Channels enabled: %s\n", strings.Join(channelManager.GetEnabledChannels(), ", "))

	var scheduler *digest.Scheduler
	if a.cfg.Digest.Enabled {
		scheduler, err = digest.New(a.cfg.Digest, gw, msgBus)
		if err != nil {
			return err
		}
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		if next, err := scheduler.Next(time.Now()); err == nil {
			fmt.Fprintf(out, "✓ Digest scheduled, next run %s\n", next.Format(time.RFC1123))
		}
	}

	if err := channelManager.StartAll(ctx); err != nil {
		if scheduler != nil {
			scheduler.Stop(context.Background())
		}
		return err
	}

	go func() {
		if err := gw.Run(ctx); err != nil {
			logger.ErrorCF("gateway", "Conversation loop stopped", map[string]any{"error": err.Error()})
		}
	}()

	fmt.Fprintf(out, "✓ Gateway started, HTTP API on http://%s\n", a.cfg.Addr())
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	server := httpapi.NewServer(a.journal, gw, logger.Zap())
	serveErr := server.ListenAndServe(ctx, a.cfg.Addr())

	fmt.Fprintln(out, "\nShutting down...")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	gw.Stop()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	_ = channelManager.StopAll(shutdownCtx)
	msgBus.Close()
	fmt.Fprintln(out, "✓ Gateway stopped")
	return serveErr
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show config, storage, and gateway readiness",
		Example: "  daybook status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd.Context(), cmd.OutOrStdout(), opts.configPath)
		},
	}
}

func printStatus(ctx context.Context, out io.Writer, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	mark := func(path string) string {
		if _, err := os.Stat(path); err == nil {
			return "✓"
		}
		return "✗"
	}
	ready := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "not set"
	}

	fmt.Fprintf(out, "%s Status\n", appName)
	fmt.Fprintf(out, "Version: %s\n", formatVersion())
	if build, _ := formatBuildInfo(); build != "" {
		fmt.Fprintf(out, "Build: %s\n", build)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Config:", configPath, mark(configPath))
	fmt.Fprintln(out, "Workspace:", cfg.WorkspacePath(), mark(cfg.WorkspacePath()))
	fmt.Fprintln(out, "Backend:", cfg.Journal.Backend)
	switch cfg.Journal.Backend {
	case config.BackendSQLite:
		fmt.Fprintln(out, "Notes DB:", cfg.NotesDBPath(), mark(cfg.NotesDBPath()))
	default:
		fmt.Fprintln(out, "Notes file:", cfg.NotesPath(), mark(cfg.NotesPath()))
	}
	if cfg.Assistant.PersistHistory {
		fmt.Fprintln(out, "History DB:", cfg.HistoryPath(), mark(cfg.HistoryPath()))
		if n, err := countHistorySessions(ctx, cfg.HistoryPath()); err == nil {
			fmt.Fprintln(out, "History sessions:", n)
		}
	} else {
		fmt.Fprintln(out, "History DB: disabled")
	}

	validErr := cfg.Validate()
	discordReady := cfg.Channels.Discord.Enabled && strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	fmt.Fprintln(out, "Discord token:", ready(strings.TrimSpace(cfg.Channels.Discord.Token) != ""))
	if cfg.Digest.Enabled {
		fmt.Fprintln(out, "Digest:", cfg.Digest.Cron, "→", cfg.Digest.Channel+":"+cfg.Digest.ChannelID)
	} else {
		fmt.Fprintln(out, "Digest: disabled")
	}
	if validErr != nil {
		fmt.Fprintln(out, "Config valid: ✗", validErr)
	} else {
		fmt.Fprintln(out, "Config valid: ✓")
	}
	fmt.Fprintln(out, "Gateway ready:", ready(validErr == nil && discordReady))
	return nil
}

// countHistorySessions reads an existing history database without creating
// one.
func countHistorySessions(ctx context.Context, path string) (int, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	store, err := memory.NewSQLiteStore(path)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return store.CountSessions(ctx)
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		sessionKey string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the persisted questions and answers of a session",
		Example: strings.Join([]string{
			"  daybook history",
			"  daybook history -s discord:123456789 -n 5",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.history == nil {
				return fmt.Errorf("history is disabled (assistant.persist_history is false)")
			}

			records, err := a.history.ListRecords(cmd.Context(), sessionKey, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "No history for %s\n", sessionKey)
				return nil
			}
			for _, rec := range records {
				fmt.Fprintln(out, headingStyle.Render(rec.Timestamp.Format("2006-01-02 15:04")+"  "+rec.Question))
				fmt.Fprintf(out, "%s\n\n", rec.Answer)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionKey, "session", "s", defaultSession, "Session key")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most N recent records (0 for all)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Example: "  daybook version",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion()
		},
	}
}
