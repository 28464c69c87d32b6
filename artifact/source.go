package artifact

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Source is durable storage that artifacts are read from by name.
type Source interface {
	Read(name string) ([]byte, error)
	Describe() string
	Close() error
}

type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Read(name string) ([]byte, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("artifact name %q must not contain a path", name)
	}
	payload, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return payload, nil
}

func (s *DirSource) Describe() string { return "dir:" + s.dir }

func (s *DirSource) Close() error { return nil }

func (s *DirSource) Dir() string { return s.dir }

const createArtifactsTable = `
    CREATE TABLE IF NOT EXISTS artifacts (
        name TEXT PRIMARY KEY,
        payload BLOB NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );`

// SQLiteSource reads artifacts from a single SQLite file, one row per artifact.
type SQLiteSource struct {
	db   *sql.DB
	path string
}

func OpenSQLite(path string) (*SQLiteSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open artifact database: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open artifact database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open artifact database: %w", err)
	}
	return &SQLiteSource{db: db, path: path}, nil
}

func (s *SQLiteSource) Read(name string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM artifacts WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read artifact %s: %w", name, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	return payload, nil
}

func (s *SQLiteSource) Describe() string { return "sqlite:" + s.path }

func (s *SQLiteSource) Close() error { return s.db.Close() }

// Pack copies every artifact named by the manifest in dir into the SQLite file at dbPath,
// replacing rows that already exist.
func Pack(dir, dbPath string) error {
	src := NewDirSource(dir)
	manifest, err := LoadManifest(src)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(createArtifactsTable); err != nil {
		return fmt.Errorf("create artifacts table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO artifacts (name, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, name := range manifest.Files.Names() {
		payload, err := src.Read(name)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(name, payload); err != nil {
			tx.Rollback()
			return fmt.Errorf("store artifact %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Open picks the source by kind: "dir" or "sqlite".
func Open(kind, location string) (Source, error) {
	switch kind {
	case "", "dir":
		info, err := os.Stat(location)
		if err != nil {
			return nil, fmt.Errorf("open artifact dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("artifact location %s is not a directory", location)
		}
		return NewDirSource(location), nil
	case "sqlite":
		return OpenSQLite(location)
	default:
		return nil, fmt.Errorf("unknown artifact source %q", kind)
	}
}
