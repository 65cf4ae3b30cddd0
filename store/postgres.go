package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"skinmatch"
	"skinmatch/match"
	"skinmatch/normalize"
)

const (
	listProductsQuery = `
		SELECT id, name, description, labels, image_links, product_link, price_cents
		FROM products
		ORDER BY id`
	filterProductsQuery = `
		SELECT id, name, description, labels, image_links, product_link, price_cents
		FROM products
		WHERE price_cents <= $1
		ORDER BY id`
	getProductQuery = `
		SELECT id, name, description, labels, image_links, product_link, price_cents
		FROM products
		WHERE id = $1`
)

// Postgres reads products from the products table written by the importer
type Postgres struct {
	db         *sql.DB
	vocabulary skinmatch.Vocabulary
}

func NewPostgres(db *sql.DB, vocabulary skinmatch.Vocabulary) *Postgres {
	return &Postgres{
		db:         db,
		vocabulary: vocabulary,
	}
}

func (p *Postgres) ListAll(ctx context.Context) ([]normalize.Record, error) {
	return p.query(ctx, listProductsQuery)
}

func (p *Postgres) FilterByMaxPrice(ctx context.Context, maxPrice skinmatch.Cents) ([]normalize.Record, error) {
	return p.query(ctx, filterProductsQuery, int64(maxPrice))
}

func (p *Postgres) GetByID(ctx context.Context, id string) (normalize.Record, error) {
	r, err := scanRecord(p.db.QueryRowContext(ctx, getProductQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, match.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", id, err)
	}
	return r, nil
}

func (p *Postgres) Vocabulary() skinmatch.Vocabulary {
	return p.vocabulary
}

func (p *Postgres) query(ctx context.Context, query string, args ...any) ([]normalize.Record, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var records []normalize.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (normalize.Record, error) {
	var (
		id, name          string
		description, link sql.NullString
		labels, images    []string
		priceCents        sql.NullInt64
	)
	err := s.Scan(&id, &name, &description, pq.Array(&labels), pq.Array(&images), &link, &priceCents)
	if err != nil {
		return nil, err
	}

	r := normalize.Record{
		"id":          id,
		"name":        name,
		"labels":      labels,
		"image_links": images,
	}
	if description.Valid {
		r["description"] = description.String
	}
	if link.Valid {
		r["product_link"] = link.String
	}
	if priceCents.Valid {
		r["price_cents"] = priceCents.Int64
	}
	return r, nil
}
