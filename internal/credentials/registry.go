//go:build !js || !wasm

package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/dvcrn/pbi-refresh/internal/credentials/migrations"
)

// ConnectionRegistry stores secrets as password fields of named connections
// in a sqlite database.
type ConnectionRegistry struct {
	db *sql.DB
}

// OpenConnectionRegistry opens the database at dsn and applies pending
// schema migrations.
func OpenConnectionRegistry(dsn string) (*ConnectionRegistry, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection registry: %w", err)
	}

	r := &ConnectionRegistry{db: db}
	if err := r.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate connection registry: %w", err)
	}
	return r, nil
}

func (r *ConnectionRegistry) applyMigrations() error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return err
	}

	err = instance.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (r *ConnectionRegistry) Close() error { return r.db.Close() }

// GetSecret returns the password of the connection with id name
func (r *ConnectionRegistry) GetSecret(ctx context.Context, name string) (string, error) {
	var password string
	err := r.db.QueryRowContext(ctx,
		`SELECT password FROM connections WHERE conn_id = ?`, name,
	).Scan(&password)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query connection %s: %w", name, err)
	}
	if password == "" {
		return "", notFound(name)
	}
	return password, nil
}

// SetSecret creates or updates the connection with id name
func (r *ConnectionRegistry) SetSecret(ctx context.Context, name, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO connections (conn_id, password) VALUES (?, ?)
		ON CONFLICT(conn_id) DO UPDATE SET
			password = excluded.password,
			updated_at = CURRENT_TIMESTAMP`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("failed to store connection %s: %w", name, err)
	}
	return nil
}
