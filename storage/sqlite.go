package storage

import (
	"context"
	"database/sql"
	stderrors "errors"

	_ "modernc.org/sqlite"

	"github.com/wippyai/vmcodec/errors"
	"github.com/wippyai/vmcodec/value"
)

const schema = `CREATE TABLE IF NOT EXISTS modules (
	address BLOB NOT NULL,
	name    TEXT NOT NULL,
	code    BLOB NOT NULL,
	PRIMARY KEY (address, name)
)`

// SQLiteBackend stores modules in a SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. Use ":memory:"
// for a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StorageBackend("open "+path, err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.StorageBackend("set busy timeout", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.StorageBackend("create modules table", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, addr value.Address, name string) ([]byte, bool, error) {
	var code []byte
	err := b.db.QueryRowContext(ctx,
		"SELECT code FROM modules WHERE address = ? AND name = ?", addr[:], name).Scan(&code)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.StorageBackend("read "+addr.ShortString()+"::"+name, err)
	}
	return code, true, nil
}

func (b *SQLiteBackend) Has(ctx context.Context, addr value.Address, name string) (bool, error) {
	var one int
	err := b.db.QueryRowContext(ctx,
		"SELECT 1 FROM modules WHERE address = ? AND name = ?", addr[:], name).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.StorageBackend("query "+addr.ShortString()+"::"+name, err)
	}
	return true, nil
}

// Put stores code under (addr, name), replacing any previous module.
func (b *SQLiteBackend) Put(ctx context.Context, addr value.Address, name string, code []byte) error {
	_, err := b.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO modules (address, name, code) VALUES (?, ?, ?)", addr[:], name, code)
	if err != nil {
		return errors.StorageBackend("write "+addr.ShortString()+"::"+name, err)
	}
	return nil
}

// Delete removes the module stored under (addr, name).
func (b *SQLiteBackend) Delete(ctx context.Context, addr value.Address, name string) error {
	_, err := b.db.ExecContext(ctx,
		"DELETE FROM modules WHERE address = ? AND name = ?", addr[:], name)
	if err != nil {
		return errors.StorageBackend("delete "+addr.ShortString()+"::"+name, err)
	}
	return nil
}

// List returns the names of modules published under addr, sorted.
func (b *SQLiteBackend) List(ctx context.Context, addr value.Address) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT name FROM modules WHERE address = ? ORDER BY name", addr[:])
	if err != nil {
		return nil, errors.StorageBackend("list "+addr.ShortString(), err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.StorageBackend("list "+addr.ShortString(), err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageBackend("list "+addr.ShortString(), err)
	}
	return names, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
