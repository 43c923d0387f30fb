package kvstore

import (
	"database/sql"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// SQLKV keeps values in a single key→JSONB table. It backs the endpoint
// emulator when a database is configured.
type SQLKV struct {
	db *sqlx.DB
}

var _ core.KV = (*SQLKV)(nil)

// Open connects to the configured database and waits for it to be ready.
func Open(conf core.DatabaseConfig) (*sqlx.DB, error) {
	user := url.UserPassword(conf.User, conf.Password)

	sslMode := "require"
	if conf.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Engine,
		User:     user,
		Host:     conf.Address(),
		Path:     conf.Name,
		RawQuery: q.Encode(),
	}
	db, err := sqlx.Open(conf.Engine, u.String())
	if err != nil {
		return nil, errors.Wrap(err, "opening DB")
	}
	if err := ping(db); err != nil {
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
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

func NewSQLKV(db *sqlx.DB) (*SQLKV, error) {
	if _, err := db.Exec(kvSchema); err != nil {
		return nil, errors.Wrap(err, "ensuring kv table")
	}
	return &SQLKV{db: db}, nil
}

func (kv *SQLKV) Get(key string) ([]byte, error) {
	var value []byte
	err := kv.db.Get(&value, `SELECT value FROM kv WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrKeyNotFound
		}
		return nil, errors.Wrapf(err, "reading %q", key)
	}
	return value, nil
}

func (kv *SQLKV) Set(key string, value []byte) error {
	_, err := kv.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	return errors.Wrapf(err, "writing %q", key)
}

func (kv *SQLKV) Delete(key string) error {
	res, err := kv.db.Exec(`DELETE FROM kv WHERE key = $1`, key)
	if err != nil {
		return errors.Wrapf(err, "deleting %q", key)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrKeyNotFound
	}
	return nil
}
