package catalog

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
)

// Postgres implements Catalog against the stocks table.
type Postgres struct {
	conn *sql.DB
}

// NewPostgres creates a catalog backed by the given database connection.
func NewPostgres(conn *sql.DB) *Postgres {
	return &Postgres{conn: conn}
}

// Lookup resolves a stock by exact code first, then by exact name.
func (c *Postgres) Lookup(ctx context.Context, identifier string) (Stock, error) {
	var stk Stock
	err := c.conn.QueryRowContext(ctx,
		`SELECT stock_code, stock_name FROM stocks WHERE stock_code = $1`,
		identifier,
	).Scan(&stk.Code, &stk.Name)
	if err == nil {
		return stk, nil
	}
	if err != sql.ErrNoRows {
		return Stock{}, fmt.Errorf("failed to look up stock by code: %w", err)
	}

	err = c.conn.QueryRowContext(ctx,
		`SELECT stock_code, stock_name FROM stocks WHERE stock_name = $1 ORDER BY stock_code LIMIT 1`,
		identifier,
	).Scan(&stk.Code, &stk.Name)
	if err == sql.ErrNoRows {
		return Stock{}, ErrStockNotFound
	}
	if err != nil {
		return Stock{}, fmt.Errorf("failed to look up stock by name: %w", err)
	}
	return stk, nil
}

// Random returns one stock chosen uniformly at random.
func (c *Postgres) Random(ctx context.Context) (Stock, error) {
	var stk Stock
	err := c.conn.QueryRowContext(ctx,
		`SELECT stock_code, stock_name FROM stocks ORDER BY random() LIMIT 1`,
	).Scan(&stk.Code, &stk.Name)
	if err == sql.ErrNoRows {
		return Stock{}, ErrCatalogEmpty
	}
	if err != nil {
		return Stock{}, fmt.Errorf("failed to pick random stock: %w", err)
	}
	return stk, nil
}

// ImportCSV loads a two-column (code, name) CSV listing into the stocks
// table, inserting or updating by code. The first row is treated as a
// header and skipped. Returns the number of stocks imported.
func (c *Postgres) ImportCSV(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open stock listing: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to parse stock listing: %w", err)
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO stocks (stock_code, stock_name)
		VALUES ($1, $2)
		ON CONFLICT (stock_code) DO UPDATE SET stock_name = EXCLUDED.stock_name
	`
	count := 0
	for i, record := range records {
		if i == 0 || len(record) < 2 {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, record[0], record[1]); err != nil {
			return 0, fmt.Errorf("failed to import stock %s: %w", record[0], err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stock import: %w", err)
	}
	return count, nil
}
