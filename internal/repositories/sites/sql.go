package sites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/dbx"
	"github.com/dmitrijs2005/filepool/internal/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*models.Site, error) {
	var (
		s       models.Site
		created int64
	)
	err := r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, `SELECT id, url, token, created_at FROM sites WHERE id = ?`), id).
		Scan(&s.ID, &s.URL, &s.Token, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site %s: %w", id, err)
	}
	s.CreatedAt = time.UnixMilli(created).UTC()
	return &s, nil
}

func (r *SQLRepository) Upsert(ctx context.Context, s *models.Site) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, dbx.Rebind(r.dialect, `
		INSERT INTO sites (id, url, token, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET url = excluded.url, token = excluded.token
	`), s.ID, s.URL, s.Token, s.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert site %s: %w", s.ID, err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context) ([]*models.Site, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, url, token, created_at FROM sites ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Site, 0)
	for rows.Next() {
		var (
			s       models.Site
			created int64
		)
		if err := rows.Scan(&s.ID, &s.URL, &s.Token, &created); err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		s.CreatedAt = time.UnixMilli(created).UTC()
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate site rows: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, dbx.Rebind(r.dialect, `DELETE FROM sites WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete site %s: %w", id, err)
	}
	return nil
}
