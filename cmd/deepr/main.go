package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hession/deepr/internal/cli"
	"github.com/hession/deepr/internal/config"
	"github.com/hession/deepr/internal/history"
	"github.com/hession/deepr/internal/logger"
)

var (
	version = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		logger.Error("command failed: %v", err)
	}
	logger.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "deepr",
		Short: "deepr - Deep research from the command line",
		Long: `deepr researches a question by planning web searches, reading the results,
and following up on what it learns, breadth first and depth limited.

It can:
  • Ask clarifying questions before it starts
  • Write a detailed markdown report with sources
  • Give a short, exact answer
  • Keep a searchable history of past research`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configDir != "" {
				config.SetConfigDir(configDir)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ./config)")

	rootCmd.AddCommand(
		newResearchCmd(),
		newQuestionsCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig loads the configuration and starts the file logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		LogDir:     config.LogDir(),
		Level:      logger.ParseLevel(cfg.Logging.Level),
		MaxDays:    cfg.Logging.MaxDays,
		ConsoleOut: cfg.Logging.Console,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	// stdlib log output from dependencies goes to the log file
	if l := logger.GetDefault(); l != nil {
		log.SetOutput(l.GetWriter(logger.WARN))
	}
	logConfigInfo(cfg)
	return cfg, nil
}

// logConfigInfo records the effective configuration without secrets.
func logConfigInfo(cfg *config.Config) {
	apiKey := "(not set)"
	if len(cfg.Model.APIKey) > 8 {
		apiKey = cfg.Model.APIKey[:4] + "****" + cfg.Model.APIKey[len(cfg.Model.APIKey)-4:]
	} else if cfg.Model.APIKey != "" {
		apiKey = "****"
	}

	logger.Info("Config: model=%s base_url=%s api_key=%s", cfg.Model.Model, cfg.Model.BaseURL, apiKey)
	logger.Info("Config: search.provider=%s research.breadth=%d research.depth=%d max_concurrency=%d",
		cfg.Search.Provider, cfg.Research.Breadth, cfg.Research.Depth, cfg.Research.MaxConcurrency)
	logger.Info("Config: history.enabled=%v history.db_path=%s", cfg.History.Enabled, cfg.History.DBPath)
}

func newResearchCmd() *cobra.Command {
	var (
		breadth     int
		depth       int
		mode        string
		followups   int
		noFollowups bool
		output      string
		raw         bool
	)

	cmd := &cobra.Command{
		Use:   "research [query...]",
		Short: "Research a question and print a report or answer",
		Long: `Research a question and print a report or answer.

Without a query you are asked for one. Unless --no-followups is given, a few
clarifying questions are asked first and your answer refines the research.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// stdin is read through a single reader
			var in cli.LineReader
			if !cfg.IsAPIKeyConfigured() {
				in = cli.NewLineReader(os.Stdin, os.Stderr, nil)
				if err := cli.EnsureAPIKey(cfg, in, os.Stderr); err != nil {
					return err
				}
			}

			runner, err := cli.Build(cfg, in)
			if err != nil {
				return err
			}
			defer runner.Close()

			opts := cli.OptionsFromConfig(cfg)
			opts.Query = strings.Join(args, " ")
			if cmd.Flags().Changed("breadth") {
				opts.Breadth = breadth
			}
			if cmd.Flags().Changed("depth") {
				opts.Depth = depth
			}
			if cmd.Flags().Changed("mode") {
				opts.Mode = mode
			}
			if cmd.Flags().Changed("followups") {
				opts.Followups = followups
			}
			if noFollowups {
				opts.Followups = 0
			}
			opts.Output = output
			opts.Raw = raw

			if err := validateOptions(opts); err != nil {
				return err
			}

			_, err = runner.Research(cmd.Context(), opts)
			return err
		},
	}

	cmd.Flags().IntVarP(&breadth, "breadth", "b", 0, "queries per level, halved at each deeper level (min 2, default from config)")
	cmd.Flags().IntVarP(&depth, "depth", "d", 0, "recursion levels (min 1, default from config)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "output mode: report or answer (default from config)")
	cmd.Flags().IntVar(&followups, "followups", 0, "number of clarifying questions to ask (default from config)")
	cmd.Flags().BoolVar(&noFollowups, "no-followups", false, "skip clarifying questions")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the output to a file (.html for HTML, else markdown)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print plain markdown instead of styled terminal output")
	return cmd
}

func validateOptions(opts cli.Options) error {
	if opts.Breadth < 2 {
		return fmt.Errorf("breadth must be at least 2, got %d", opts.Breadth)
	}
	if opts.Depth < 1 {
		return fmt.Errorf("depth must be at least 1, got %d", opts.Depth)
	}
	if opts.Mode != history.ModeReport && opts.Mode != history.ModeAnswer {
		return fmt.Errorf("mode must be %q or %q, got %q", history.ModeReport, history.ModeAnswer, opts.Mode)
	}
	if opts.Followups < 0 {
		return fmt.Errorf("followups must not be negative, got %d", opts.Followups)
	}
	return nil
}

func newQuestionsCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "questions <query...>",
		Short: "Print the clarifying questions deepr would ask for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.History.Enabled = false

			runner, err := cli.Build(cfg, nil)
			if err != nil {
				return err
			}
			defer runner.Close()

			if !cmd.Flags().Changed("count") {
				count = cfg.Research.FollowupQuestions
			}
			_, err = runner.Questions(cmd.Context(), strings.Join(args, " "), count)
			return err
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 3, "maximum number of questions")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	withHistory := func(fn func(c *cli.HistoryCommands, args []string) (string, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := history.NewSQLiteStore(cfg.History.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer store.Close()

			out, err := fn(cli.NewHistoryCommands(store), args)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		}
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage past research",
	}
	historyCmd.PersistentFlags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")

	historyCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List recent research",
			Args:  cobra.NoArgs,
			RunE: withHistory(func(c *cli.HistoryCommands, args []string) (string, error) {
				return c.List(limit)
			}),
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a past run (ID or unique prefix)",
			Args:  cobra.ExactArgs(1),
			RunE: withHistory(func(c *cli.HistoryCommands, args []string) (string, error) {
				return c.Show(args[0])
			}),
		},
		&cobra.Command{
			Use:   "search <keyword>",
			Short: "Search past queries and outputs",
			Args:  cobra.MinimumNArgs(1),
			RunE: withHistory(func(c *cli.HistoryCommands, args []string) (string, error) {
				return c.Search(strings.Join(args, " "), limit)
			}),
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a past run",
			Args:  cobra.ExactArgs(1),
			RunE: withHistory(func(c *cli.HistoryCommands, args []string) (string, error) {
				return c.Delete(args[0])
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete all past runs",
			Args:  cobra.NoArgs,
			RunE: withHistory(func(c *cli.HistoryCommands, args []string) (string, error) {
				return c.Clear()
			}),
		},
		&cobra.Command{
			Use:   "export [file]",
			Short: "Export history as JSON (stdout when no file is given)",
			Args:  cobra.MaximumNArgs(1),
			RunE: withHistory(func(c *cli.HistoryCommands, args []string) (string, error) {
				path := "-"
				if len(args) == 1 {
					path = args[0]
				}
				return c.Export(path)
			}),
		},
		&cobra.Command{
			Use:   "import <file>",
			Short: "Import history exported as JSON, skipping known runs",
			Args:  cobra.ExactArgs(1),
			RunE: withHistory(func(c *cli.HistoryCommands, args []string) (string, error) {
				return c.Import(args[0])
			}),
		},
	)
	return historyCmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())

			path, _ := config.ConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "\nConfig file path: %s\n", path)
			if promptPath, err := config.PromptConfigPath(); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Prompt file path: %s\n", promptPath)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "deepr v%s\n", version)
		},
	}
}
