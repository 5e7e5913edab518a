package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rolerag/internal/ingest"
	"rolerag/internal/service"
	"rolerag/internal/tui"
)

var (
	queryRole string
	queryN    int
	queryJSON bool
	tuiRole   string
	watch     bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Segment department markdown into chunk files",
	Long: `Reads every <data_dir>/<department>/*.md and writes its chunks to
<data_dir>/<department>/chunked_reports/<name>.json.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		written, err := ingest.NewExtractor(logger).Run(cmd.Context(), cfg.DataDir)
		if err != nil {
			return err
		}
		cmd.Printf("Wrote %d chunk files under %s\n", len(written), cfg.DataDir)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Tag chunk files and load them into the vector store",
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question as a role",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Ask questions interactively as a role",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Print which roles can read each department",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		table := permissionTable(cfg)
		for _, dept := range table.Departments() {
			allowed, _ := table.Allowed(dept)
			cmd.Printf("%-12s %s\n", dept, strings.Join(allowed, ", "))
		}
	},
}

func init() {
	ingestCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and re-ingest changed files")
	queryCmd.Flags().StringVarP(&queryRole, "role", "r", "", "role asking the question (required)")
	queryCmd.Flags().IntVarP(&queryN, "results", "n", 0, "maximum chunks used for the answer (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the response as JSON")
	_ = queryCmd.MarkFlagRequired("role")
	tuiCmd.Flags().StringVarP(&tuiRole, "role", "r", "", "role asking the questions (required)")
	_ = tuiCmd.MarkFlagRequired("role")
	rootCmd.AddCommand(extractCmd, ingestCmd, queryCmd, tuiCmd, rolesCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	oracle, inProcess, closeFn, err := newOracle(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	pipeline := newPipeline(cfg, oracle, logger)
	rep, err := pipeline.Run(ctx, cfg.DataDir)
	if err != nil {
		return err
	}
	cmd.Printf("Ingested %d records from %d files into %s (%d skipped)\n",
		rep.Records, len(rep.Processed), oracle.Name(), len(rep.Skipped))
	for _, s := range rep.Skipped {
		cmd.Printf("  skipped %s: %v\n", s.Path, s.Err)
	}
	if inProcess && !watch {
		cmd.Println("Note: the configured vector store lives in memory; query and tui reload chunk files on start.")
	}
	if !watch {
		return nil
	}

	w, err := ingest.NewWatcher(ingest.NewExtractor(logger), pipeline, cfg.DataDir,
		ingest.WithDebounce(cfg.WatchDebounce()),
		ingest.WithLogger(logger),
		ingest.WithOnFlush(func(r ingest.Report) {
			cmd.Printf("Re-ingested %d records from %d files\n", r.Records, len(r.Processed))
		}))
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	w.Start(ctx)
	logger.Info("watching for changes", zap.String("data_dir", cfg.DataDir))
	<-ctx.Done()
	w.Stop()
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if queryN > 0 {
		cfg.Retrieval.NResults = queryN
	}
	svc, closeFn, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	resp, err := svc.Answer(ctx, queryRole, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if queryJSON {
		return outputJSON(cmd, resp)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), tui.RenderMarkdown(tui.ResponseMarkdown(resp), 100))
	return err
}

func outputJSON(cmd *cobra.Command, resp service.Response) error {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	// JSON log lines would corrupt the alternate screen
	log := logger
	if !verbose {
		log = zap.NewNop()
	}
	svc, closeFn, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	table := permissionTable(cfg)
	if !table.Known(tuiRole) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: role %q is not in the permission table\n", tuiRole)
	}
	_, err = tea.NewProgram(tui.New(ctx, svc, tuiRole), tea.WithAltScreen()).Run()
	return err
}
