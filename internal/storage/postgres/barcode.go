package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BarcodeRepository stores the known product barcodes loaded by the ingest
// tool and streamed into the in-memory screen at startup.
type BarcodeRepository struct {
	pool *pgxpool.Pool
}

// NewBarcodeRepository returns a BarcodeRepository that uses the given pool.
func NewBarcodeRepository(pool *pgxpool.Pool) *BarcodeRepository {
	return &BarcodeRepository{pool: pool}
}

// Barcode is one catalog barcode mapping.
type Barcode struct {
	Code      string
	ProductID int64
}

// UpsertBatch inserts a batch of barcodes, overwriting the product mapping
// for codes that already exist.
func (r *BarcodeRepository) UpsertBatch(ctx context.Context, batch []Barcode) error {
	if len(batch) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, bc := range batch {
		b.Queue(`
			INSERT INTO barcodes (barcode, product_id)
			VALUES ($1, $2)
			ON CONFLICT (barcode) DO UPDATE SET product_id = EXCLUDED.product_id`,
			bc.Code, bc.ProductID,
		)
	}

	results := r.pool.SendBatch(ctx, b)
	defer results.Close()
	for range batch {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "upsert barcode")
		}
	}
	return nil
}

// EachBarcode streams every stored barcode to fn. It implements
// barcode.Source.
func (r *BarcodeRepository) EachBarcode(ctx context.Context, fn func(code string) error) error {
	rows, err := r.pool.Query(ctx, `SELECT barcode FROM barcodes`)
	if err != nil {
		return errors.Wrap(err, "query barcodes")
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return errors.Wrap(err, "scan barcode")
		}
		if err := fn(code); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "iterate barcodes")
}

// Count returns the number of stored barcodes.
func (r *BarcodeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM barcodes`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count barcodes")
	}
	return n, nil
}
