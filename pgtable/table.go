// SPDX-License-Identifier: MIT

// Package pgtable feeds the tile expiry engine from PostGIS feature
// tables, the same tables the importer writes its geometries to.
package pgtable

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osmgo/tileexpire/expire"
)

// Table adapts one PostGIS feature table to expire.Table. The geometry
// column must hold geometries in the SRS the engine's projection was
// configured for.
type Table struct {
	pool       *pgxpool.Pool
	name       string
	geomColumn string
	idColumn   string
}

// New returns an adapter reading geomColumn from table rows matched by
// idColumn.
func New(pool *pgxpool.Pool, table, geomColumn, idColumn string) *Table {
	return &Table{pool: pool, name: table, geomColumn: geomColumn, idColumn: idColumn}
}

// WKBReader returns an iterator over the raw EWKB geometries stored for
// one OSM object. An object may be stored in several rows, e.g. when the
// importer splits long ways.
func (t *Table) WKBReader(ctx context.Context, osmID int64) (expire.WKBReader, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		QuoteIdentifier(t.geomColumn), QuoteIdentifier(t.name), QuoteIdentifier(t.idColumn))
	rows, err := t.pool.Query(ctx, query, osmID)
	if err != nil {
		return nil, fmt.Errorf("pgtable: query %s: %w", t.name, err)
	}
	return &rowReader{rows: rows}, nil
}

type rowReader struct {
	rows pgx.Rows
}

func (r *rowReader) Next() ([]byte, error) {
	if !r.rows.Next() {
		err := r.rows.Err()
		r.rows.Close()
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	var wkb []byte
	if err := r.rows.Scan(&wkb); err != nil {
		r.rows.Close()
		return nil, err
	}
	return wkb, nil
}

// QuoteIdentifier makes a string safe for use as a SQL identifier,
// following PostgreSQL's double-quote rules.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
