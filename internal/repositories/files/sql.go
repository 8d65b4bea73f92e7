package files

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

const selectColumns = `site_id, file_id, url, path, extension, revision, time_modified, stale, size, downloaded_at`

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

func (r *SQLRepository) Get(ctx context.Context, siteID, fileID string) (*models.FileEntry, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+selectColumns+` FROM files WHERE site_id = ? AND file_id = ?`), siteID, fileID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return e, nil
}

func (r *SQLRepository) Upsert(ctx context.Context, e *models.FileEntry) error {
	query := `INSERT INTO files (site_id, file_id, url, path, extension, revision, time_modified, stale, size, downloaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(site_id, file_id) DO UPDATE SET url = excluded.url,
				path = excluded.path,
				extension = excluded.extension,
				revision = excluded.revision,
				time_modified = excluded.time_modified,
				stale = excluded.stale,
				size = excluded.size,
				downloaded_at = excluded.downloaded_at`

	_, err := r.db.ExecContext(ctx, r.q(query),
		e.SiteID, e.FileID, e.URL, e.Path, e.Extension, nullInt64(e.Revision),
		e.TimeModified, e.Stale, e.Size, e.DownloadedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, siteID, fileID string) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM files WHERE site_id = ? AND file_id = ?`), siteID, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}
	return nil
}

func (r *SQLRepository) ListBySite(ctx context.Context, siteID string) ([]*models.FileEntry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM files WHERE site_id = ? ORDER BY file_id`, siteID)
}

func (r *SQLRepository) ListStale(ctx context.Context, siteID string) ([]*models.FileEntry, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM files WHERE site_id = ? AND stale = ? ORDER BY file_id`, siteID, true)
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*models.FileEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	result := make([]*models.FileEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file rows: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) SetStale(ctx context.Context, siteID, fileID string) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE files SET stale = ? WHERE site_id = ? AND file_id = ?`), true, siteID, fileID)
	if err != nil {
		return fmt.Errorf("failed to invalidate file %s: %w", fileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) SetStaleAll(ctx context.Context, siteID string) (int, error) {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE files SET stale = ? WHERE site_id = ? AND stale = ?`), true, siteID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate files of site %s: %w", siteID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *SQLRepository) DeleteBySite(ctx context.Context, siteID string) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM files WHERE site_id = ?`), siteID)
	if err != nil {
		return fmt.Errorf("failed to delete files of site %s: %w", siteID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.FileEntry, error) {
	var (
		e            models.FileEntry
		revision     sql.NullInt64
		downloadedAt int64
	)
	err := s.Scan(&e.SiteID, &e.FileID, &e.URL, &e.Path, &e.Extension, &revision,
		&e.TimeModified, &e.Stale, &e.Size, &downloadedAt)
	if err != nil {
		return nil, err
	}
	if revision.Valid {
		e.Revision = models.Int64(revision.Int64)
	}
	e.DownloadedAt = time.UnixMilli(downloadedAt).UTC()
	return &e, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
