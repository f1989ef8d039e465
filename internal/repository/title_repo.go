package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miprootsaysak/yt-loader/internal/model"
)

// TitleRepo reads the externally maintained title dimension. The
// pipeline never writes it.
type TitleRepo struct {
	pool *pgxpool.Pool
}

func NewTitleRepo(pool *pgxpool.Pool) *TitleRepo {
	return &TitleRepo{pool: pool}
}

// FetchAll returns the current, non-deleted search seeds.
func (r *TitleRepo) FetchAll(ctx context.Context) ([]model.Title, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, by_title
		FROM title
		WHERE is_current AND NOT is_deleted
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []model.Title
	for rows.Next() {
		var t model.Title
		if err := rows.Scan(&t.ID, &t.ByTitle); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}
