package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/nexuscds/internal/config"
	"github.com/TobiSchelling/nexuscds/internal/database"
	"github.com/TobiSchelling/nexuscds/internal/intake"
	"github.com/TobiSchelling/nexuscds/internal/llm"
	"github.com/TobiSchelling/nexuscds/internal/logging"
	"github.com/TobiSchelling/nexuscds/internal/pdf"
	"github.com/TobiSchelling/nexuscds/internal/pipeline"
	"github.com/TobiSchelling/nexuscds/internal/server"
	"github.com/TobiSchelling/nexuscds/internal/triage"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "nexuscds",
	Short:   "Clinical triage decision support",
	Long:    "nexuscds turns free-text clinical narratives into Red/Yellow/Green triage briefs using a team of LLM agents.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadDotEnv(".env", filepath.Join(config.ConfigDir(), ".env")); err != nil {
			return err
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger, err = logging.New(cfg.Logging, verbose, os.Stderr)
		if err != nil {
			return err
		}
		log.Logger = logger
		if path != "" {
			logger.Debug().Str("path", path).Msg("loaded config")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("nexuscds", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/nexuscds/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose the LLM provider; put the API key in .env (GROQ_API_KEY by default).")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		schema, err := db.SchemaVersion()
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s (schema v%d)\n\n", db.Path(), schema)
		fmt.Println("Records:")
		fmt.Printf("  Total: %d\n", stats.Total)
		fmt.Printf("  Red: %d\n", stats.Red)
		fmt.Printf("  Yellow: %d\n", stats.Yellow)
		fmt.Printf("  Green: %d\n", stats.Green)
		if stats.Total > 0 {
			fmt.Printf("  Average confidence: %.0f%%\n", stats.AvgConfidence)
		}
		if stats.LastRecordAt != nil {
			fmt.Printf("  Last record: %s\n", database.FormatTimestampDisplay(*stats.LastRecordAt))
		}

		key := "set"
		if cfg.LLM.APIKey == "" {
			key = "missing"
		}
		fmt.Println("\nLLM:")
		fmt.Printf("  Provider: %s\n", cfg.LLM.Provider)
		fmt.Printf("  Model: %s\n", cfg.LLM.Model)
		if cfg.LLM.Provider != config.ProviderOllama {
			fmt.Printf("  API key (%s): %s\n", cfg.LLM.KeyEnv(), key)
		}
		return nil
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the triage dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		provider, err := llm.CreateProvider(cfg.LLM, logger)
		if err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := pipeline.NewMetrics(reg)

		p := pipeline.New(provider, logger, metrics.Hooks(), cfg.LLM.MaxTokens)
		svc := intake.NewService(p, db, metrics, cfg.Triage.FallbackConfidence, logger)

		srv, err := server.New(db, svc, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting dashboard at http://%s\n", cfg.Addr())
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, cfg.Addr(), srv.Handler(), logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

var (
	historyLevel   string
	historyPatient string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List triage records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := database.ListFilter{PatientID: historyPatient, Limit: historyLimit}
		if historyLevel != "" {
			l, err := triage.ParseLevel(historyLevel)
			if err != nil {
				return err
			}
			filter.Level = l
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.ListRecords(filter)
		if err != nil {
			return fmt.Errorf("listing records: %w", err)
		}
		if len(records) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tPATIENT\tLEVEL\tCONFIDENCE")
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d%%\n", r.ID, r.Timestamp, r.PatientID, r.TriageLevel, r.Confidence)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyLevel, "level", "", "Only show records at this level (Red, Yellow, Green)")
	historyCmd.Flags().StringVar(&historyPatient, "patient", "", "Only show records whose patient ID contains this text")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of records (0 for all)")
}

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write the stored PDF of a record to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid record id %q", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		doc, err := db.FetchPDF(id)
		if err != nil {
			return fmt.Errorf("fetching record %d: %w", id, err)
		}
		if doc == nil {
			fmt.Printf("Record %d not found.\n", id)
			return nil
		}

		target := exportOutput
		if target == "" {
			target = pdf.RecallFilename(doc.PatientID)
		}
		if err := os.WriteFile(target, doc.Blob, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", target, len(doc.Blob))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default Recall_<patient>.pdf)")
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DBPath())
}
