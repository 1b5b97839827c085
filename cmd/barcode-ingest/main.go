// Command barcode-ingest loads product barcode dumps into the barcode table
// that backs the scan screen. Dumps are gzip-compressed text files with one
// "barcode,product_id" record per line; files are processed concurrently and
// records are written in batches.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/grocerly/checkout/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	minCodeLen    = 8
	maxCodeLen    = 14
	progressEvery = 1_000_000
)

func main() {
	var (
		dataDir     string
		databaseURL string
		batchSize   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing barcode dump .gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 5000, "records per database batch")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, batchSize); err != nil {
		slog.Error("barcode ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("barcode ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, batchSize int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list dump files")
	}
	if len(files) == 0 {
		return errors.Errorf("no .gz dump files found in %s", dataDir)
	}
	slog.Info("found dump files", slog.Int("files", len(files)))

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	ing := &ingester{
		repo:      postgres.NewBarcodeRepository(pool),
		seen:      bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		batchSize: batchSize,
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(ing.ingestFile(ctx, f))
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest finished",
		slog.Int64("written", ing.written.Load()),
		slog.Int64("skipped", ing.skipped.Load()),
	)
	return nil
}

type ingester struct {
	repo      *postgres.BarcodeRepository
	batchSize int

	// seen screens out barcodes already written this run. The screen is
	// probabilistic: a false positive skips a remap that the next run's
	// upsert applies anyway.
	mu   sync.Mutex
	seen *bloom.BloomFilter

	written atomic.Int64
	skipped atomic.Int64
}

func (ing *ingester) ingestFile(ctx context.Context, path string) func() error {
	return func() error {
		batch := make([]postgres.Barcode, 0, ing.batchSize)
		var count uint64

		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := ing.repo.UpsertBatch(ctx, batch); err != nil {
				return errors.Wrapf(err, "upsert batch from %s", filepath.Base(path))
			}
			ing.written.Add(int64(len(batch)))
			batch = batch[:0]
			return nil
		}

		err := streamGzFile(ctx, path, func(line string) error {
			count++
			if count%progressEvery == 0 {
				slog.Info("ingest progress",
					slog.String("file", filepath.Base(path)),
					slog.Uint64("lines", count),
				)
			}

			rec, ok := parseLine(line)
			if !ok {
				ing.skipped.Add(1)
				return nil
			}

			ing.mu.Lock()
			dup := ing.seen.TestAndAddString(rec.Code)
			ing.mu.Unlock()
			if dup {
				ing.skipped.Add(1)
				return nil
			}

			batch = append(batch, rec)
			if len(batch) >= ing.batchSize {
				return flush()
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := flush(); err != nil {
			return err
		}

		slog.Info("file complete",
			slog.String("file", filepath.Base(path)),
			slog.Uint64("lines", count),
		)
		return nil
	}
}

// parseLine parses a "barcode,product_id" record. Tab-separated dumps are
// accepted too.
func parseLine(line string) (postgres.Barcode, bool) {
	line = strings.TrimSpace(line)
	sep := ","
	if strings.ContainsRune(line, '\t') {
		sep = "\t"
	}
	code, rest, ok := strings.Cut(line, sep)
	if !ok {
		return postgres.Barcode{}, false
	}

	code = strings.TrimSpace(code)
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return postgres.Barcode{}, false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return postgres.Barcode{}, false
		}
	}

	productID, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
	if err != nil || productID <= 0 {
		return postgres.Barcode{}, false
	}

	return postgres.Barcode{Code: code, ProductID: productID}, true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
