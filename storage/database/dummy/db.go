package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/core/assignment"
	"github.com/trezcool/classmirror/core/conflict"
	"github.com/trezcool/classmirror/core/course"
	"github.com/trezcool/classmirror/core/token"
)

type (
	DB struct {
		course     *courseTable
		assignment *assignmentTable
		mapping    *mappingTable
		token      *tokenTable
		conflict   *conflictTable

		lockMu    sync.Mutex
		userLocks map[string]*sync.Mutex
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course // "<user>|<remote>"
	}

	assignmentTable struct {
		sync.RWMutex
		table map[string]*assignment.Assignment // "<user>|<remote>"
	}

	mappingTable struct {
		sync.RWMutex
		table map[string]*course.NameMapping // "<user>|<course>"
	}

	tokenTable struct {
		sync.RWMutex
		table map[string]*token.Token // user id
	}

	conflictTable struct {
		sync.RWMutex
		table map[string]*conflict.Conflict // conflict id
	}
)

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		course:     &courseTable{table: make(map[string]*course.Course)},
		assignment: &assignmentTable{table: make(map[string]*assignment.Assignment)},
		mapping:    &mappingTable{table: make(map[string]*course.NameMapping)},
		token:      &tokenTable{table: make(map[string]*token.Token)},
		conflict:   &conflictTable{table: make(map[string]*conflict.Conflict)},
		userLocks:  make(map[string]*sync.Mutex),
	}
	return db, nil
}

func key(userID, itemID string) string {
	return userID + "|" + itemID
}

// WithUserLock serializes per-user work like the real store's advisory lock.
func (db *DB) WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	db.lockMu.Lock()
	mu, ok := db.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		db.userLocks[userID] = mu
	}
	db.lockMu.Unlock()

	mu.Lock()
	defer mu.Unlock()
	return fn(ctx)
}

// BeginTx hands out a no-op transactor: the dummy repos mutate their maps
// directly and ignore exec overrides.
func (db *DB) BeginTx(_ context.Context, _ *sql.TxOptions) (core.DBTransactor, error) {
	return noopTx{}, nil
}

func (db *DB) Exec(string, ...interface{}) (sql.Result, error) { return nil, nil }
func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (db *DB) Query(string, ...interface{}) (*sql.Rows, error) { return nil, nil }
func (db *DB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (db *DB) QueryRow(string, ...interface{}) *sql.Row                       { return nil }
func (db *DB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

type noopTx struct{}

var _ core.DBTransactor = (*noopTx)(nil)

func (noopTx) Exec(string, ...interface{}) (sql.Result, error) { return nil, nil }
func (noopTx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (noopTx) Query(string, ...interface{}) (*sql.Rows, error) { return nil, nil }
func (noopTx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (noopTx) QueryRow(string, ...interface{}) *sql.Row                         { return nil }
func (noopTx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }
func (noopTx) Commit() error                                                    { return nil }
func (noopTx) Rollback() error                                                  { return nil }
