// Package bincache is the compiled-binary cache spec §4.E implies: a
// content-addressed store of bytecode.Image bytes keyed by the SHA-256
// of the source script, so PUTSCRIPT/SETACTIVE/delivery don't
// recompile an unchanged script on every run. It follows the shape of
// sievegate's original message cache — on-disk blobs plus a SQLite
// index tracking size and last-access time for capacity-based purge —
// repurposed from mail objects to compiled scripts and moved onto
// modernc.org/sqlite so the whole binary stays cgo-free.
package bincache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const dataDir = "data"
const indexDB = "bincache_index.db"
const purgeTick = 12 * time.Hour

// Cache stores compiled bytecode keyed by a content hash the caller
// computes (sha256 of the source script is the intended key, but
// bincache itself is hash-scheme agnostic).
type Cache struct {
	basePath     string
	maxSizeBytes int64
	db           *sql.DB
	mu           sync.Mutex
}

// New opens (creating if needed) a bincache rooted at basePath, capped
// at maxSizeMB of stored bytecode.
func New(basePath string, maxSizeMB int64) (*Cache, error) {
	dir := filepath.Join(basePath, dataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating bincache data path %s: %w", dir, err)
	}

	dbPath := filepath.Join(basePath, indexDB)
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening bincache index: %w", err)
	}

	if _, err := sqlDB.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		log.Printf("[bincache] WARNING: failed to set WAL journal mode: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS bincache_index (
		hash     TEXT PRIMARY KEY,
		size     INTEGER NOT NULL,
		accessed TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bincache_accessed ON bincache_index(accessed);
	`
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating bincache schema: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("bincache index ping failed: %w", err)
	}

	return &Cache{
		basePath:     basePath,
		maxSizeBytes: maxSizeMB * 1024 * 1024,
		db:           sqlDB,
	}, nil
}

// Get returns the compiled bytecode stored under hash, bumping its
// access time so the LRU purge treats it as freshly used.
func (c *Cache) Get(hash string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.pathFor(hash)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := c.db.Exec(`UPDATE bincache_index SET accessed = ? WHERE hash = ?`, time.Now(), hash); err != nil {
		log.Printf("[bincache] Get: failed to refresh access time for %s: %v", hash, err)
	}
	return data, nil
}

// Put stores compiled bytecode under hash, overwriting any existing
// entry for the same hash (which should be byte-identical anyway,
// since compilation is deterministic — spec §5's "two compilations of
// the same source produce byte-identical bytecode" guarantee).
func (c *Cache) Put(hash string, code []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.pathFor(hash)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating bincache directory: %w", err)
	}
	if err := os.WriteFile(path, code, 0644); err != nil {
		return fmt.Errorf("writing bincache entry: %w", err)
	}
	if _, err := c.db.Exec(`INSERT OR REPLACE INTO bincache_index (hash, size, accessed) VALUES (?, ?, ?)`,
		hash, len(code), time.Now()); err != nil {
		os.Remove(path)
		return fmt.Errorf("indexing bincache entry: %w", err)
	}
	return nil
}

// Delete removes hash's entry, e.g. when its owning script is deleted
// or overwritten and is unlikely to be recompiled identically again.
func (c *Cache) Delete(hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.pathFor(hash)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing bincache entry: %w", err)
	}
	if _, err := c.db.Exec(`DELETE FROM bincache_index WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("removing bincache index entry: %w", err)
	}
	return nil
}

// PurgeIfNeeded evicts the least recently accessed entries until the
// store is back under its configured size cap.
func (c *Cache) PurgeIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total sql.NullInt64
	if err := c.db.QueryRowContext(ctx, `SELECT SUM(size) FROM bincache_index`).Scan(&total); err != nil {
		return fmt.Errorf("summing bincache size: %w", err)
	}
	if !total.Valid || total.Int64 <= c.maxSizeBytes {
		return nil
	}

	rows, err := c.db.QueryContext(ctx, `SELECT hash, size FROM bincache_index ORDER BY accessed ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	remaining := total.Int64
	for rows.Next() {
		var hash string
		var size int64
		if err := rows.Scan(&hash, &size); err != nil {
			log.Printf("[bincache] PurgeIfNeeded: scan error: %v", err)
			continue
		}
		path := c.pathFor(hash)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("[bincache] PurgeIfNeeded: failed to remove %s: %v", path, err)
			continue
		}
		if _, err := c.db.Exec(`DELETE FROM bincache_index WHERE hash = ?`, hash); err != nil {
			log.Printf("[bincache] PurgeIfNeeded: failed to delete index row for %s: %v", hash, err)
		}
		remaining -= size
		if remaining <= c.maxSizeBytes {
			break
		}
	}
	return nil
}

// RemoveStaleDBEntries drops index rows whose backing file has gone
// missing, e.g. after an out-of-band disk cleanup.
func (c *Cache) RemoveStaleDBEntries(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, `SELECT hash FROM bincache_index`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			continue
		}
		if _, err := os.Stat(c.pathFor(hash)); os.IsNotExist(err) {
			stale = append(stale, hash)
		}
	}
	for _, hash := range stale {
		if _, err := c.db.Exec(`DELETE FROM bincache_index WHERE hash = ?`, hash); err != nil {
			log.Printf("[bincache] RemoveStaleDBEntries: failed to remove %s: %v", hash, err)
		}
	}
	return nil
}

// StartPurgeLoop runs PurgeIfNeeded/RemoveStaleDBEntries on a ticker
// until ctx is canceled.
func (c *Cache) StartPurgeLoop(ctx context.Context) {
	go func() {
		c.runCycle(ctx)
		ticker := time.NewTicker(purgeTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.runCycle(ctx)
			}
		}
	}()
}

func (c *Cache) runCycle(ctx context.Context) {
	if err := c.PurgeIfNeeded(ctx); err != nil {
		log.Printf("[bincache] purge error: %v", err)
	}
	if err := c.RemoveStaleDBEntries(ctx); err != nil {
		log.Printf("[bincache] stale entry cleanup error: %v", err)
	}
}

// pathFor splits hash into a shallow directory tree so no single
// directory ends up with one entry per distinct script ever compiled.
func (c *Cache) pathFor(hash string) string {
	if len(hash) < 4 {
		return filepath.Join(c.basePath, dataDir, hash)
	}
	return filepath.Join(c.basePath, dataDir, hash[:2], hash[2:4], hash[4:])
}
