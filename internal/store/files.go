package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
)

// FileState classifies what is on disk at a store path.
type FileState int

const (
	// FileMissing: nothing there; a fresh store will be created.
	FileMissing FileState = iota
	// FileEncrypted: a store written by this package (has store_meta).
	FileEncrypted
	// FileLegacy: a readable SQLite file from before encryption.
	FileLegacy
	// FileForeign: not readable as SQLite at all.
	FileForeign
)

func (s FileState) String() string {
	switch s {
	case FileMissing:
		return "missing"
	case FileEncrypted:
		return "encrypted"
	case FileLegacy:
		return "legacy"
	case FileForeign:
		return "foreign"
	}
	return fmt.Sprintf("FileState(%d)", int(s))
}

// DatabaseFiles returns the main file and its write-ahead log and
// shared-memory index. They share a base name and go together.
func DatabaseFiles(path string) []string {
	return []string{path, path + "-wal", path + "-shm"}
}

// DeleteUnderlyingFiles removes every file of the store at path. Missing
// files are ignored. The store must not be open.
func DeleteUnderlyingFiles(path string) error {
	var errs []error
	for _, f := range DatabaseFiles(path) {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("delete store files: %w", err)
	}
	return nil
}

// Inspect reports what kind of file is at path without modifying it.
func Inspect(path string) (FileState, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return FileMissing, nil
	}
	if err != nil {
		return FileMissing, fmt.Errorf("inspect store: %w", err)
	}
	if info.Size() == 0 {
		return FileLegacy, nil
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return FileForeign, nil
	}
	defer db.Close()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		// "file is not a database" and friends.
		return FileForeign, nil
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return FileForeign, nil
		}
		if name == metaTable {
			return FileEncrypted, nil
		}
	}
	if err := rows.Err(); err != nil {
		return FileForeign, nil
	}
	return FileLegacy, nil
}
