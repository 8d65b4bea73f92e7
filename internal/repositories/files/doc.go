// Package files persists FileEntry records: the files of a site that were
// downloaded and committed to the pool.
//
// # Overview
//
// Repository is the contract used by the file pool. Two implementations
// exist:
//
//   - SQLRepository    : SQLite or PostgreSQL over dbx.DBTX (*sql.DB or *sql.Tx)
//   - LevelDBRepository: goleveldb over kvx.KV (*leveldb.DB or *leveldb.Transaction)
//
// Both are constructed on whatever handle the caller holds, so the same
// code runs inside and outside a transaction.
//
// Typical Usage
//
//	repo := files.NewSQLRepository(db, dbx.DialectSQLite)
//	_ = repo.Upsert(ctx, entry)
//	e, err := repo.Get(ctx, siteID, fileID) // common.ErrorNotFound if absent
//	_ = repo.SetStale(ctx, siteID, fileID)
package files
