// Package store is the engine's durable persistence layer: a single
// embedded SQLite database with an FTS5 mirror for lexical recall and an
// optional sqlite-vec table for vector recall. Grounded on
// internal/graph/db.go's Open/migrate/runMigrations shape.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vthunder/engram/internal/logging"
)

func init() {
	sqlite_vec.Auto() // registers the vec0 virtual table with go-sqlite3
}

// Store wraps the SQLite connection backing one engine instance.
type Store struct {
	db   *sql.DB
	path string

	// writeMu serializes all write paths under a single-writer discipline;
	// SQLite's WAL mode lets reads proceed concurrently.
	writeMu sync.Mutex

	vecAvailable bool
	vecDim       int // 0 until the first embedding fixes the dimension
}

// Open opens or creates the database at dbPath ("" or ":memory:" use an
// in-memory database, matching the Python reference's SQLiteStore(":memory:")
// test convenience).
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// A single shared connection is required or each query would see a
		// fresh, empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		logging.Info("store", "sqlite-vec not available: %v — falling back to full scan", err)
	} else {
		logging.Info("store", "sqlite-vec %s loaded", vecVersion)
		s.vecAvailable = true
		if err := s.initVecDimFromMemories(); err != nil {
			logging.Warn("store", "vec init: %v", err)
		}
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the full schema if it does not yet exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		short_id TEXT DEFAULT '',
		content TEXT NOT NULL,
		type TEXT NOT NULL,
		importance REAL NOT NULL,
		layer TEXT NOT NULL DEFAULT 'working',
		created_at DATETIME NOT NULL,
		last_accessed_at DATETIME NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0,
		reinforcement REAL NOT NULL DEFAULT 0,
		contradicts TEXT REFERENCES memories(id) ON DELETE SET NULL,
		embedding BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_memories_layer ON memories(layer);
	CREATE INDEX IF NOT EXISTS idx_memories_last_accessed ON memories(last_accessed_at);
	CREATE INDEX IF NOT EXISTS idx_memories_short_id ON memories(short_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		content,
		content='memories',
		content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
		INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
	END;
	CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
		INSERT INTO memories_fts(memories_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
		INSERT INTO memories_fts(rowid, content) VALUES (new.rowid, new.content);
	END;

	CREATE TABLE IF NOT EXISTS hebbian_links (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		strength REAL,
		coactivation_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (source_id, target_id),
		FOREIGN KEY (source_id) REFERENCES memories(id) ON DELETE CASCADE,
		FOREIGN KEY (target_id) REFERENCES memories(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_hebbian_source ON hebbian_links(source_id);
	CREATE INDEX IF NOT EXISTS idx_hebbian_strength ON hebbian_links(strength);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.runMigrations()
}

// runMigrations applies incremental schema changes, matching
// internal/graph/db.go's version-gated migration style. There is exactly
// one migration today; the hook exists so future schema changes follow the
// teacher's pattern instead of rewriting migrate() in place.
func (s *Store) runMigrations() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		version = 1
	}

	if version < 2 {
		s.db.Exec("CREATE TABLE IF NOT EXISTS memories_vec_meta (dim INTEGER)")
		s.db.Exec("INSERT INTO schema_version (version) VALUES (2)")
	}

	return nil
}
