package postgres

import (
	"context"
	"fmt"

	"github.com/MiteyIronPaw/selfoss/pkg/sources"
)

// SourceRepository persists Source records. Params are stored as JSONB and
// round-trip without loss.
type SourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func (r *SourceRepository) List(ctx context.Context) ([]*sources.Source, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, spout, params, title, html_url, last_fetch, last_error
		FROM sources
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []*sources.Source
	for rows.Next() {
		var s sources.Source
		err := rows.Scan(&s.ID, &s.Spout, &s.Params, &s.Title, &s.HTMLURL, &s.LastFetch, &s.LastError)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}

	return out, nil
}

func (r *SourceRepository) Upsert(ctx context.Context, s *sources.Source) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO sources (id, spout, params, title, html_url, last_fetch, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			spout = EXCLUDED.spout,
			params = EXCLUDED.params,
			title = EXCLUDED.title,
			html_url = EXCLUDED.html_url,
			last_fetch = EXCLUDED.last_fetch,
			last_error = EXCLUDED.last_error`,
		s.ID, s.Spout, s.Params, s.Title, s.HTMLURL, s.LastFetch, s.LastError)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}

	return nil
}

func (r *SourceRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool().Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}

	return nil
}
