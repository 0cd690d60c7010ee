// Package sqlstore implements the repository interfaces over database/sql.
//
// The same queries run against MySQL (production, go-sql-driver/mysql) and
// SQLite (development and tests, modernc.org/sqlite): both use "?"
// placeholders, and the schema differences live in the per-dialect goose
// migrations under migrations/.
//
// Every table uses xid strings as primary keys. xids sort by creation time,
// so "id ASC" is a stable creation-order tie-breaker.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ironforge/athlete-api/internal/dbx"
	"github.com/ironforge/athlete-api/internal/repository"
)

// Driver names as registered with database/sql.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// compile-time check that *Store implements repository.Store
var _ repository.Store = (*Store)(nil)

// Store owns the connection pool. Its repositories run on the pool; InTx
// hands out repositories bound to a transaction.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
	repos
}

// repos binds the table repositories to one query handle.
type repos struct {
	q   dbx.DBTX
	now func() time.Time
}

func (r repos) Users() repository.UserRepository               { return userRepo(r) }
func (r repos) Profiles() repository.ProfileRepository         { return profileRepo(r) }
func (r repos) Training() repository.TrainingRepository        { return trainingRepo(r) }
func (r repos) Achievements() repository.AchievementRepository { return achievementRepo(r) }
func (r repos) Stats() repository.StatRepository               { return statRepo(r) }

// Open connects to the database, applies connection settings for the driver
// and runs pending migrations.
//
// For SQLite the pool is limited to one connection: ":memory:" databases are
// per-connection, and a single writer avoids SQLITE_BUSY on files.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var dialect database.Dialect
	switch driver {
	case DriverMySQL:
		dialect = database.DialectMySQL
	case DriverSQLite:
		dialect = database.DialectSQLite3
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: pinging %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		for _, pragma := range []string{"PRAGMA foreign_keys=ON", "PRAGMA journal_mode=WAL"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("sqlstore: %s: %w", pragma, err)
			}
		}
	}

	if err := migrate(ctx, db, dialect, driver); err != nil {
		db.Close()
		return nil, err
	}

	now := func() time.Time { return time.Now().UTC().Truncate(time.Second) }
	return &Store{
		db:     db,
		driver: driver,
		now:    now,
		repos:  repos{q: db, now: now},
	}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect database.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return fmt.Errorf("sqlstore: migrations for %s: %w", dir, err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("sqlstore: creating migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return nil
}

// InTx runs fn inside one transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, q dbx.DBTX) error {
		return fn(ctx, repos{q: q, now: s.now})
	})
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a duplicate-key error from either
// driver.
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
			strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}

// dateArg renders an optional calendar date the way both drivers store DATE.
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

// dateValue converts a scanned DATE into a UTC midnight time.
func dateValue(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	y, m, d := nt.Time.Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func stringValue(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func clampList(opts repository.ListOptions) repository.ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}
