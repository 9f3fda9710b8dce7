package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/gofrs/flock"

	"github.com/mzxrai/driggsby/internal/driggerr"
)

const busyTimeout = 250 * time.Millisecond

// ResolveLedgerHome resolves the ledger home directory: an explicit override
// wins, then $DRIGGSBY_HOME, then $HOME/.driggsby.
func ResolveLedgerHome(override string) (string, error) {
	candidate := override
	if candidate == "" {
		if envHome := os.Getenv("DRIGGSBY_HOME"); envHome != "" {
			candidate = envHome
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", driggerr.LedgerInitFailed(".", "could not resolve a home directory for ledger initialization")
			}
			candidate = filepath.Join(homeDir, ".driggsby")
		}
	}

	if filepath.IsAbs(candidate) {
		return candidate, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", driggerr.LedgerInitFailed(candidate, err.Error())
	}
	return filepath.Join(cwd, candidate), nil
}

// EnsureLedgerDirectory creates the ledger home with owner-only permissions.
func EnsureLedgerDirectory(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return mapIOError(path, err)
	}
	_ = os.Chmod(path, 0o700)
	return nil
}

// LedgerDBPath returns `home/ledger.db`.
func LedgerDBPath(home string) string {
	return filepath.Join(home, "ledger.db")
}

// LockPath returns `home/ledger.lock`, the advisory pre-check lock file.
func LockPath(home string) string {
	return filepath.Join(home, "ledger.lock")
}

// OpenReadWrite opens a read-write connection to the ledger database with a
// 250ms busy timeout, first taking a non-blocking advisory `flock` on
// `ledger.lock` as a fast-fail convenience layer; SQLite's own busy-timeout
// and `ledger_locked` mapping remain the authoritative enforcement.
func OpenReadWrite(dbPath string) (*sql.DB, *flock.Flock, error) {
	lock := flock.New(LockPath(filepath.Dir(dbPath)))
	locked, err := lock.TryLock()
	if err == nil && !locked {
		return nil, nil, driggerr.LedgerLocked(dbPath)
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(%d)", dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, mapEngineError(dbPath, err)
	}
	if err := db.Ping(); err != nil {
		_ = lock.Unlock()
		return nil, nil, mapEngineError(dbPath, err)
	}
	return db, lock, nil
}

// OpenReadOnly opens a plain read-only connection (`mode=ro`) for internal
// callers like the analytics loaders. It takes no authorizer; the engine's
// read-only flag alone prevents mutation.
func OpenReadOnly(dbPath string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)", dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, mapEngineError(dbPath, err)
	}
	if err := db.Ping(); err != nil {
		return nil, mapEngineError(dbPath, err)
	}
	return db, nil
}

// OpenPublicReadOnly opens the ledger for the public SQL surface: a
// `mode=ro` connection with the view/function authorizer installed, so a
// caller-supplied query can only touch the allowlisted `v1_*` views and a
// fixed set of scalar/aggregate functions.
func OpenPublicReadOnly(dbPath string, allowedViews []string) (*sql.DB, error) {
	db, err := OpenReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	if err := installAuthorizer(db, allowedViews); err != nil {
		_ = db.Close()
		return nil, mapEngineError(dbPath, err)
	}
	return db, nil
}

func mapIOError(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return driggerr.LedgerInitPermissionDenied(path, err.Error())
	}
	return driggerr.LedgerInitFailed(path, err.Error())
}

// MapEngineError exposes the engine-error mapping to sibling packages; the
// store is the only component allowed to originate `ledger_*` error codes,
// so everything that runs SQL funnels driver errors through here.
func MapEngineError(path string, err error) error {
	return mapEngineError(path, err)
}

// mapEngineError maps a raw sqlite3/driver error into the driggerr taxonomy
// by its busy/locked, not-a-database, and permission classifications.
func mapEngineError(path string, err error) error {
	if err == nil {
		return nil
	}
	message := err.Error()
	switch {
	case containsAny(message, "database is locked", "busy"):
		return driggerr.LedgerLocked(path)
	case containsAny(message, "not a database", "file is not a database", "malformed"):
		return driggerr.LedgerCorrupt(path)
	case containsAny(message, "unable to open database file", "readonly", "attempt to write a readonly database", "permission denied"):
		return driggerr.LedgerInitPermissionDenied(path, message)
	default:
		return driggerr.LedgerInitFailed(path, message)
	}
}

func containsAny(haystack string, needles ...string) bool {
	lowered := strings.ToLower(haystack)
	for _, needle := range needles {
		if strings.Contains(lowered, needle) {
			return true
		}
	}
	return false
}
