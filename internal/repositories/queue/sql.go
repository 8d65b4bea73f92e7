package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/dmitrijs2005/filepool/internal/dbx"
	"github.com/dmitrijs2005/filepool/internal/models"
)

const selectColumns = `seq, site_id, file_id, url, revision, time_modified, links, added_at`

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

func (r *SQLRepository) Get(ctx context.Context, siteID, fileID string) (*models.QueueEntry, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+selectColumns+` FROM queue WHERE site_id = ? AND file_id = ?`), siteID, fileID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry %s: %w", fileID, err)
	}
	return e, nil
}

func (r *SQLRepository) Upsert(ctx context.Context, e *models.QueueEntry) error {
	links, err := json.Marshal(nonNil(e.Links))
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}

	addedAt := e.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	query := `INSERT INTO queue (site_id, file_id, url, revision, time_modified, links, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(site_id, file_id) DO UPDATE SET url = excluded.url,
				revision = excluded.revision,
				time_modified = excluded.time_modified,
				links = excluded.links`

	_, err = r.db.ExecContext(ctx, r.q(query),
		e.SiteID, e.FileID, e.URL, nullInt64(e.Revision), e.TimeModified, string(links), addedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert queue entry: %w", err)
	}
	return nil
}

func (r *SQLRepository) Next(ctx context.Context, siteID string) (*models.QueueEntry, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+selectColumns+` FROM queue WHERE site_id = ? ORDER BY seq LIMIT 1`), siteID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next queue entry: %w", err)
	}
	return e, nil
}

func (r *SQLRepository) Delete(ctx context.Context, siteID, fileID string) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM queue WHERE site_id = ? AND file_id = ?`), siteID, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry %s: %w", fileID, err)
	}
	return nil
}

func (r *SQLRepository) ListBySite(ctx context.Context, siteID string) ([]*models.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT `+selectColumns+` FROM queue WHERE site_id = ? ORDER BY seq`), siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	result := make([]*models.QueueEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue rows: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Sites(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT site_id FROM queue ORDER BY site_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued sites: %w", err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan site id: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate site ids: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) DeleteBySite(ctx context.Context, siteID string) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM queue WHERE site_id = ?`), siteID)
	if err != nil {
		return fmt.Errorf("failed to delete queue of site %s: %w", siteID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.QueueEntry, error) {
	var (
		e        models.QueueEntry
		revision sql.NullInt64
		links    string
		addedAt  int64
	)
	if err := s.Scan(&e.Seq, &e.SiteID, &e.FileID, &e.URL, &revision, &e.TimeModified, &links, &addedAt); err != nil {
		return nil, err
	}
	if revision.Valid {
		e.Revision = models.Int64(revision.Int64)
	}
	if err := json.Unmarshal([]byte(links), &e.Links); err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}
	e.AddedAt = time.UnixMilli(addedAt).UTC()
	return &e, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nonNil(links []models.Link) []models.Link {
	if links == nil {
		return []models.Link{}
	}
	return links
}
