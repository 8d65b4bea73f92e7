// Package kvx is the LevelDB counterpart of dbx: a minimal interface
// satisfied by both *leveldb.DB and *leveldb.Transaction, a transaction
// helper, key building, prefix scans and gob record encoding.
package kvx

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// KV is the subset of goleveldb used by our repos.
type KV interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	Put(key, value []byte, wo *opt.WriteOptions) error
	Delete(key []byte, wo *opt.WriteOptions) error
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// sep never occurs in site ids, file ids or component names.
const sep = "\x00"

// Key joins parts into a single key.
func Key(parts ...string) []byte {
	return []byte(strings.Join(parts, sep))
}

// Prefix is Key with a trailing separator, so "a" does not match "ab".
func Prefix(parts ...string) []byte {
	return []byte(strings.Join(parts, sep) + sep)
}

// Split undoes Key.
func Split(key []byte) []string {
	return strings.Split(string(key), sep)
}

// WithTx opens a LevelDB transaction, runs fn and commits on success or
// discards on error/panic. LevelDB admits one transaction at a time, so
// concurrent callers queue up here.
func WithTx(ctx context.Context, db *leveldb.DB, fn func(ctx context.Context, tx KV) error) (err error) {
	tx, err := db.OpenTransaction()
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Discard()
			panic(p)
		}
		if err != nil {
			tx.Discard()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// Scan calls fn for every key under prefix, in key order. Key and value
// slices are only valid during the call.
func Scan(kv KV, prefix []byte, fn func(key, value []byte) error) error {
	it := kv.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	for it.Next() {
		if err := fn(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

// DeletePrefix removes every key under prefix.
func DeletePrefix(kv KV, prefix []byte) error {
	var keys [][]byte
	err := Scan(kv, prefix, func(key, _ []byte) error {
		keys = append(keys, append([]byte(nil), key...))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := kv.Delete(k, nil); err != nil {
			return err
		}
	}
	return nil
}

// GetGob loads and decodes the record at key. found is false when the key
// does not exist.
func GetGob(kv KV, key []byte, v any) (found bool, err error) {
	b, err := kv.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, DecodeGob(b, v)
}

// PutGob encodes v and stores it at key.
func PutGob(kv KV, key []byte, v any) error {
	b, err := EncodeGob(v)
	if err != nil {
		return err
	}
	return kv.Put(key, b, nil)
}

func EncodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
