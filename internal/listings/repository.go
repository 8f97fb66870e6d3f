package listings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dcabrera/revolico-scraper/internal/config"
	"github.com/dcabrera/revolico-scraper/internal/models"
)

var ErrNotFound = errors.New("listing not found")

// Repository persists extracted listings in PostgreSQL, keyed by the
// external listing ID so a re-scrape updates rather than duplicates.
type Repository struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*Repository, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	r.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id                  BIGSERIAL PRIMARY KEY,
	external_id         TEXT UNIQUE NOT NULL,
	source_url          TEXT NOT NULL,
	title               TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	price               DOUBLE PRECISION,
	currency            TEXT NOT NULL DEFAULT 'USD',
	phone_numbers       TEXT[] NOT NULL DEFAULT '{}',
	seller_name         TEXT,
	profile_picture_url TEXT,
	image_urls          TEXT[] NOT NULL DEFAULT '{}',
	category            TEXT NOT NULL DEFAULT '',
	location            TEXT NOT NULL DEFAULT '',
	condition           TEXT NOT NULL DEFAULT 'used',
	scraped_at          TIMESTAMPTZ NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listings_scraped_at ON listings (scraped_at DESC);
CREATE INDEX IF NOT EXISTS idx_listings_category ON listings (category);
`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Upsert writes a listing, updating the existing row when the external
// ID was seen before.
func (r *Repository) Upsert(ctx context.Context, l *models.ExtractedListing) error {
	if l.ExternalID == "" {
		return fmt.Errorf("listing has no external id: %s", l.SourceURL)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO listings (
			external_id, source_url, title, description, price, currency,
			phone_numbers, seller_name, profile_picture_url, image_urls,
			category, location, condition, scraped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (external_id) DO UPDATE SET
			source_url          = EXCLUDED.source_url,
			title               = EXCLUDED.title,
			description         = EXCLUDED.description,
			price               = EXCLUDED.price,
			currency            = EXCLUDED.currency,
			phone_numbers       = EXCLUDED.phone_numbers,
			seller_name         = EXCLUDED.seller_name,
			profile_picture_url = EXCLUDED.profile_picture_url,
			image_urls          = EXCLUDED.image_urls,
			category            = EXCLUDED.category,
			location            = EXCLUDED.location,
			condition           = EXCLUDED.condition,
			scraped_at          = EXCLUDED.scraped_at,
			updated_at          = now()`,
		l.ExternalID, l.SourceURL, l.Title, l.Description, l.Price, l.Currency,
		l.PhoneNumbers, l.SellerName, l.ProfilePictureURL, l.ImageURLs,
		l.Category, l.Location, l.Condition, l.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert listing %s: %w", l.ExternalID, err)
	}
	return nil
}

func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.ExtractedListing, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT external_id, source_url, title, description, price, currency,
		       phone_numbers, seller_name, profile_picture_url, image_urls,
		       category, location, condition, scraped_at
		FROM listings
		WHERE external_id = $1`, externalID)

	listing, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing %s: %w", externalID, err)
	}
	return listing, nil
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*models.ExtractedListing, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT external_id, source_url, title, description, price, currency,
		       phone_numbers, seller_name, profile_picture_url, image_urls,
		       category, location, condition, scraped_at
		FROM listings
		ORDER BY scraped_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var out []*models.ExtractedListing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		out = append(out, listing)
	}
	return out, rows.Err()
}

func scanListing(row pgx.Row) (*models.ExtractedListing, error) {
	var l models.ExtractedListing

	err := row.Scan(
		&l.ExternalID, &l.SourceURL, &l.Title, &l.Description, &l.Price, &l.Currency,
		&l.PhoneNumbers, &l.SellerName, &l.ProfilePictureURL, &l.ImageURLs,
		&l.Category, &l.Location, &l.Condition, &l.ScrapedAt,
	)
	if err != nil {
		return nil, err
	}

	return &l, nil
}
