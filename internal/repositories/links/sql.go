package links

import (
	"context"
	"fmt"

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

func (r *SQLRepository) q(query string) string {
	return dbx.Rebind(r.dialect, query)
}

func (r *SQLRepository) Add(ctx context.Context, siteID, fileID string, links []models.Link) error {
	query := r.q(`INSERT INTO links (site_id, file_id, component, component_id) VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING`)
	for _, l := range links {
		if l.Component == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, query, siteID, fileID, l.Component, l.ComponentID); err != nil {
			return fmt.Errorf("failed to add link %s/%s: %w", l.Component, l.ComponentID, err)
		}
	}
	return nil
}

func (r *SQLRepository) ByFile(ctx context.Context, siteID, fileID string) ([]models.Link, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT component, component_id FROM links
			WHERE site_id = ? AND file_id = ? ORDER BY component, component_id`), siteID, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links of %s: %w", fileID, err)
	}
	defer rows.Close()

	result := make([]models.Link, 0)
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.Component, &l.ComponentID); err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate link rows: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) FileIDsByComponent(ctx context.Context, siteID, component, componentID string) ([]string, error) {
	query := `SELECT DISTINCT file_id FROM links WHERE site_id = ? AND component = ?`
	args := []any{siteID, component}
	if componentID != "" {
		query += ` AND component_id = ?`
		args = append(args, componentID)
	}
	query += ` ORDER BY file_id`

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links of %s: %w", component, err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate link rows: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) DeleteByFile(ctx context.Context, siteID, fileID string) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM links WHERE site_id = ? AND file_id = ?`), siteID, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete links of %s: %w", fileID, err)
	}
	return nil
}

func (r *SQLRepository) DeleteBySite(ctx context.Context, siteID string) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM links WHERE site_id = ?`), siteID)
	if err != nil {
		return fmt.Errorf("failed to delete links of site %s: %w", siteID, err)
	}
	return nil
}
