// Command import-tool runs a bulk subscriber import from the command line.
// It shares the pipeline with the server's import endpoint, so a file
// imported here produces exactly the report the endpoint would.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-research/audience/internal/config"
	"github.com/meridian-research/audience/internal/domain"
	"github.com/meridian-research/audience/internal/importer"
	"github.com/meridian-research/audience/internal/progress"
	"github.com/meridian-research/audience/internal/segments"
	"github.com/meridian-research/audience/internal/store"
)

func main() {
	var (
		file        = flag.String("file", "", "path to the CSV file to import (required unless -template)")
		configPath  = flag.String("config", "config/config.yaml", "path to the config file")
		skipDup     = flag.Bool("skip-duplicates", true, "skip rows whose email already exists")
		concurrency = flag.Int("concurrency", 0, "store operations in flight (0 = config value)")
		dryRun      = flag.Bool("dry-run", false, "run the full pipeline without committing any rows")
		template    = flag.Bool("template", false, "print the CSV template to stdout and exit")
	)
	flag.Parse()

	if *template {
		fmt.Print(importer.Template())
		return
	}
	if *file == "" {
		fmt.Fprintln(os.Stderr, "error: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("loading config: %v", err)
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		fatal("reading %s: %v", *file, err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		fatal("opening database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.Database.Lifetime())

	ctx := context.Background()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		fatal("database unreachable: %v", err)
	}

	norm, err := segments.FromConfig(cfg.Segments.Aliases)
	if err != nil {
		fatal("invalid segment alias table: %v", err)
	}

	var recordStore importer.RecordStore = store.New(db)
	if *dryRun {
		fmt.Println("dry run: no rows will be committed")
		recordStore = dryRunStore{recordStore}
	}
	pipeline := importer.New(recordStore, norm)

	workers := *concurrency
	if workers <= 0 {
		workers = cfg.Import.Concurrency
	}

	var tracker *progress.Tracker
	if cfg.Redis.Enabled && !*dryRun {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if rdb.Ping(ctx).Err() == nil {
			tracker = progress.NewTracker(rdb)
		}
	}

	job := &progress.Job{
		ID:       uuid.New().String(),
		Source:   progress.SourceCLI,
		Filename: filepath.Base(*file),
	}
	tracker.Start(ctx, job)

	start := time.Now()
	res := pipeline.Run(ctx, string(payload), importer.Options{
		SkipDuplicates: *skipDup,
		Concurrency:    workers,
	})
	tracker.Complete(ctx, job.ID, res)

	printReport(*file, res, time.Since(start))
	if res.Imported == 0 && len(res.Errors) > 0 {
		os.Exit(1)
	}
}

func printReport(file string, res *domain.ImportResult, elapsed time.Duration) {
	fmt.Println("=========================================================")
	fmt.Printf(" Import report: %s\n", filepath.Base(file))
	fmt.Println("=========================================================")
	fmt.Printf("Total rows:     %d\n", res.Total)
	fmt.Printf("Imported:       %d\n", res.Imported)
	fmt.Printf("Skipped:        %d\n", res.Skipped)
	fmt.Printf("  duplicates:   %d\n", res.Duplicates)
	fmt.Printf("  errors:       %d\n", len(res.Errors))
	fmt.Printf("Elapsed:        %s\n", elapsed.Round(time.Millisecond))

	if len(res.Errors) > 0 {
		fmt.Println("---------------------------------------------------------")
		for _, e := range res.Errors {
			if e.Email != "" {
				fmt.Printf("row %d (%s): %s\n", e.Row, e.Email, e.Error)
			} else {
				fmt.Printf("row %d: %s\n", e.Row, e.Error)
			}
		}
	}
	if len(res.SegmentWarnings) > 0 {
		fmt.Println("---------------------------------------------------------")
		for _, wmsg := range res.SegmentWarnings {
			fmt.Printf("warning: %s\n", wmsg)
		}
	}
}

// dryRunStore answers duplicate lookups from the real store but discards
// writes, so a dry run reports exactly what a live run would do.
type dryRunStore struct {
	importer.RecordStore
}

func (dryRunStore) Create(ctx context.Context, sub *domain.Subscriber) error {
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
