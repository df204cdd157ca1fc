package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/kpub/internal/ads"
	"github.com/TobiSchelling/kpub/internal/classify"
	"github.com/TobiSchelling/kpub/internal/collect"
	"github.com/TobiSchelling/kpub/internal/config"
	"github.com/TobiSchelling/kpub/internal/database"
	"github.com/TobiSchelling/kpub/internal/fetch"
	"github.com/TobiSchelling/kpub/internal/importer"
	"github.com/TobiSchelling/kpub/internal/pipeline"
	"github.com/TobiSchelling/kpub/internal/report"
	"github.com/TobiSchelling/kpub/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	dbPath     string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kpub",
	Short:   "Kepler/K2 publication database",
	Long:    "kpub tracks the scientific publications that use Kepler and K2 data, harvested from NASA ADS.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		c, path, err := config.LoadOrDefault(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = c
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}
		if cfg.Quiet() && !verbose {
			log.SetOutput(io.Discard)
		}
		if path != "" {
			log.Printf("Using config %s", path)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "f", "", "Location of the publication database (default ~/.kpub.db)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(spreadsheetCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kpub", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/kpub/",
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
		fmt.Println("Put your ADS token in ADS_DEV_KEY (or a .env file next to the config).")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status",
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

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Publications:")
		fmt.Printf("  Total: %d\n", stats.TotalPublications)
		fmt.Printf("  Kepler: %d\n", stats.Kepler)
		fmt.Printf("  K2: %d\n", stats.K2)
		fmt.Printf("  Unrelated: %d\n", stats.Unrelated)
		if stats.Unclassified > 0 {
			fmt.Printf("  Without science tag: %d\n", stats.Unclassified)
		}

		fmt.Println("\nUpdates:")
		fmt.Printf("  Months reviewed: %d\n", stats.UpdateRuns)
		last, err := db.GetLastUpdateRun()
		if err != nil {
			return err
		}
		if last != nil {
			completed := ""
			if last.CompletedAt != nil {
				completed = " on " + *last.CompletedAt
			}
			fmt.Printf("  Last: %s (%d reviewed, %d added)%s\n", last.Month, last.Reviewed, last.Added, completed)
		}
		return nil
	},
}

// --- list command ---

var (
	listExoplanets   bool
	listAstrophysics bool
	listKepler       bool
	listK2           bool
	listByMonth      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the publication list in Markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var f database.Filter
		// Both or neither flag of a pair means no restriction.
		if listExoplanets != listAstrophysics {
			f.Science = database.ScienceAstrophysics
			if listExoplanets {
				f.Science = database.ScienceExoplanets
			}
		}
		if listKepler != listK2 {
			f.Mission = database.MissionK2
			if listKepler {
				f.Mission = database.MissionKepler
			}
		}

		rows, err := db.Query(f)
		if err != nil {
			return err
		}
		out, err := report.PublicationList(rows, report.ListOptions{
			Title:        "Kepler/K2 publications",
			GroupByMonth: listByMonth,
		})
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVarP(&listExoplanets, "exoplanets", "e", false, "Only show exoplanet publications")
	listCmd.Flags().BoolVarP(&listAstrophysics, "astrophysics", "a", false, "Only show astrophysics publications")
	listCmd.Flags().BoolVarP(&listKepler, "kepler", "k", false, "Only show Kepler publications")
	listCmd.Flags().BoolVarP(&listK2, "k2", "2", false, "Only show K2 publications")
	listCmd.Flags().BoolVarP(&listByMonth, "month", "m", false, "Group the papers by month rather than year")
}

// --- save command ---

var saveDir string

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write all publication lists and the overview as Markdown and HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		dir := saveDir
		if dir == "" {
			dir = cfg.GetOutputDir()
		}
		written, err := report.NewWriter(db).SaveAll(dir)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d files to %s\n", len(written), dir)
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVarP(&saveDir, "output", "o", "", "Output directory (default from config)")
}

// --- update command ---

var dryRun bool

var updateCmd = &cobra.Command{
	Use:   "update [month]",
	Short: "Interactively review new ADS publications of a month (YYYY-MM, default current)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		month := database.CurrentMonth()
		if len(args) == 1 {
			m, err := database.ParseMonth(args[0])
			if err != nil {
				return err
			}
			month = m
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		pipe := pipeline.New(db, newCollector(db))

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(ctx, month)
		} else {
			result = pipe.Run(ctx, month)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			switch {
			case step.Err != nil && step.Optional:
				fmt.Printf("  Warning: %v\n", step.Err)
			case step.Err != nil:
				fmt.Printf("  Error: %v\n", step.Err)
			default:
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if result.Failed() {
			return fmt.Errorf("update of %s did not complete", month)
		}
		if !dryRun {
			fmt.Println("\nUpdate complete! Run 'kpub save' to refresh the lists.")
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only count the candidates")
}

// --- add / delete commands ---

var (
	addMission string
	addScience string
)

var addCmd = &cobra.Command{
	Use:   "add bibcode...",
	Short: "Add publications by ADS bibcode",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var cl classify.Classifier
		if addMission != "" {
			fixed, err := classify.NewFixed(addMission, addScience)
			if err != nil {
				return err
			}
			cl = fixed
		}

		ctx := context.Background()
		collector := newCollector(db)
		for _, bibcode := range args {
			res, err := collector.AddByBibcode(ctx, bibcode, cl)
			if err != nil {
				return fmt.Errorf("adding %s: %w", bibcode, err)
			}
			switch {
			case res.Added > 0:
				fmt.Printf("Added %s\n", bibcode)
			case res.Duplicates > 0:
				fmt.Printf("%s is already in the database\n", bibcode)
			case len(res.Errors) > 0:
				fmt.Printf("Could not add %s: %s\n", bibcode, res.Errors[0])
			default:
				fmt.Printf("Skipped %s\n", bibcode)
			}
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addMission, "mission", "", "Classify without prompting: kepler, k2 or unrelated")
	addCmd.Flags().StringVar(&addScience, "science", "", "Science category with --mission: exoplanets or astrophysics")
}

var deleteCmd = &cobra.Command{
	Use:   "delete bibcode...",
	Short: "Delete publications by ADS bibcode",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		for _, bibcode := range args {
			n, err := db.DeleteByBibcode(bibcode)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Printf("%s was not in the database\n", bibcode)
			} else {
				fmt.Printf("Deleted %s\n", bibcode)
			}
		}
		return nil
	},
}

// --- import / export commands ---

var importCmd = &cobra.Command{
	Use:   "import csvfile",
	Short: "Batch-import bibcode,mission,science rows, fetching metadata from ADS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := importer.New(newCollector(db), 100*time.Millisecond).Import(ctx, f)
		if err != nil {
			return err
		}

		fmt.Println("\nImport complete:")
		fmt.Printf("  Rows: %d\n", res.Rows)
		fmt.Printf("  Added: %d\n", res.Added)
		fmt.Printf("  Duplicates: %d\n", res.Duplicates)
		if len(res.Failed) > 0 {
			fmt.Printf("  Failed: %d\n", len(res.Failed))
			for _, b := range res.Failed {
				fmt.Printf("    %s\n", b)
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print bibcode,mission,science for every publication",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		return importer.ExportCSV(db, os.Stdout)
	},
}

var spreadsheetOut string

var spreadsheetCmd = &cobra.Command{
	Use:   "spreadsheet",
	Short: "Export the Kepler/K2 publications with their metrics as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var w io.Writer = os.Stdout
		if spreadsheetOut != "" {
			f, err := os.Create(spreadsheetOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := importer.ExportSpreadsheet(db, w, time.Now()); err != nil {
			return err
		}
		if spreadsheetOut != "" {
			fmt.Printf("Wrote %s\n", spreadsheetOut)
		}
		return nil
	},
}

func init() {
	spreadsheetCmd.Flags().StringVarP(&spreadsheetOut, "output", "o", "", "Write to a file instead of stdout")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	path := cfg.GetDatabasePath()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return database.Open(path)
}

func newCollector(db *database.DB) *collect.Collector {
	client := ads.NewClient(
		ads.WithToken(cfg.APIKey()),
		ads.WithBaseURL(cfg.ADS.BaseURL),
		ads.WithRateLimit(cfg.ADS.RateLimit),
		ads.WithRows(cfg.ADS.Rows),
	)
	c := collect.NewCollector(cfg, db, client, classify.NewPrompter(os.Stdin, os.Stdout))
	if cfg.Update.FetchMissingAbstracts {
		c.SetAbstractFetcher(fetch.NewAbstractFetcher(15 * time.Second))
	}
	return c
}
