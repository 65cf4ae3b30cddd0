// Package importer loads a product catalog CSV into the products table read
// by store.Postgres.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"skinmatch"
	"skinmatch/normalize"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		labels TEXT[] NOT NULL DEFAULT '{}',
		image_links TEXT[] NOT NULL DEFAULT '{}',
		product_link TEXT,
		price_cents BIGINT NOT NULL CHECK (price_cents >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS products_price_cents_idx ON products (price_cents)`,
}

const upsertProductQuery = `
	INSERT INTO products (id, name, description, labels, image_links, product_link, price_cents)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id)
	DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		labels = EXCLUDED.labels,
		image_links = EXCLUDED.image_links,
		product_link = EXCLUDED.product_link,
		price_cents = EXCLUDED.price_cents`

var requiredColumns = []string{"name", "price"}

type Importer struct {
	db         *sql.DB
	normalizer normalize.Normalizer
	log        zerolog.Logger
}

func New(db *sql.DB, vocabulary skinmatch.Vocabulary, logger zerolog.Logger) Importer {
	return Importer{
		db:         db,
		normalizer: normalize.New(vocabulary),
		log:        logger.With().Str("component", "importer").Logger(),
	}
}

type Stats struct {
	Imported int
	Skipped  int
}

func (i Importer) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := i.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Import upserts every usable row of a catalog CSV with the columns
// id, name, description, labels, image_links, product_link and price.
// Rows without an id are numbered by their position in the file.
func (i Importer) Import(ctx context.Context, r io.Reader) (Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Stats{}, fmt.Errorf("error reading header: %w", err)
	}
	columns := map[string]int{}
	for idx, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return Stats{}, fmt.Errorf("missing required column %q", name)
		}
	}

	var stats Stats
	for line := 1; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("error reading row %d: %w", line, err)
		}

		record := normalize.Record{}
		for name, idx := range columns {
			if idx < len(row) && strings.TrimSpace(row[idx]) != "" {
				record[name] = row[idx]
			}
		}
		if _, ok := record["id"]; !ok {
			record["id"] = strconv.Itoa(line)
		}

		p, err := i.normalizer.Normalize(record)
		if err != nil {
			i.log.Warn().Int("row", line).Err(err).Msg("skipping row")
			stats.Skipped++
			continue
		}

		if err := i.upsert(ctx, p); err != nil {
			return stats, err
		}
		stats.Imported++
	}

	i.log.Info().Int("imported", stats.Imported).Int("skipped", stats.Skipped).Msg("finished import")
	return stats, nil
}

func (i Importer) upsert(ctx context.Context, p skinmatch.Product) error {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}

	_, err := i.db.ExecContext(ctx, upsertProductQuery,
		p.ID, p.Name, nullString(p.Description), pq.Array(tags), pq.Array(images), nullString(p.URL), int64(p.Price),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
