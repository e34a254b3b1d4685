package database

import (
	"context"
	"database/sql"
	"hash/fnv"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/classmirror/core"
	"github.com/trezcool/classmirror/storage/database/migrations"
)

// DB wraps sqlx so it satisfies core.DB and can hand out transactions as
// core.DBTransactor.
type DB struct {
	*sqlx.DB
}

var _ core.DB = (*DB)(nil)

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func open(dbName string, admin bool, conf *core.Config) (*DB, error) {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	db, err := sqlx.Open(conf.Database.Engine, u.String())
	if err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}

func Open(conf *core.Config) (*DB, error) {
	return open(conf.Database.Name, false, conf)
}

func OpenAdmin(conf *core.Config) (*DB, error) {
	return open(conf.Database.Name, true, conf)
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(db *DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.DB.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Migrate applies the embedded migrations.
func Migrate(db *DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.Up(db.DB.DB, "."); err != nil {
		return errors.Wrap(err, "applying migrations")
	}
	return nil
}

// WithUserLock serializes fn against other sessions holding the same user's
// advisory lock. The lock lives on a dedicated connection so pool reuse
// cannot leak it.
func (db *DB) WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	conn, err := db.DB.DB.Conn(ctx)
	if err != nil {
		return errors.Wrap(err, "acquiring connection")
	}
	defer conn.Close()

	key := lockKey(userID)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		return errors.Wrap(err, "acquiring advisory lock")
	}
	defer func() {
		// release on a fresh context: the caller's may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.ExecContext(rctx, `SELECT pg_advisory_unlock($1)`, key)
	}()

	return fn(ctx)
}

func lockKey(userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("classmirror.sync." + userID))
	return int64(h.Sum64())
}

// trapNoRowsErr maps psql "no rows" to the given domain sentinel.
func trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
