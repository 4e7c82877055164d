package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrHostNotFound возвращается, когда хост с таким identity не
// зарегистрирован.
var ErrHostNotFound = errors.New("host not found")

// Host - запись реестра хостов.
type Host struct {
	ID        int64     `db:"id"`
	Identity  string    `db:"identity"`
	Alias     string    `db:"alias"`
	PINHash   string    `db:"pin_hash"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type HostRepository interface {
	Upsert(ctx context.Context, host *Host) error
	GetByIdentity(ctx context.Context, identity string) (*Host, error)
}

type hostRepo struct {
	db *sqlx.DB
}

func NewHostRepo(db *sqlx.DB) HostRepository {
	return &hostRepo{db: db}
}

// Upsert регистрирует хост либо обновляет alias и PIN существующего:
// хост перерегистрируется на каждом старте.
func (r *hostRepo) Upsert(ctx context.Context, host *Host) error {
	query := `
		INSERT INTO hosts (identity, alias, pin_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE
		SET alias = EXCLUDED.alias, pin_hash = EXCLUDED.pin_hash, updated_at = now()`

	res, err := r.db.ExecContext(ctx, query, host.Identity, host.Alias, host.PINHash)
	if err != nil {
		return fmt.Errorf("upsert host: %w", err)
	}

	if aff, err := res.RowsAffected(); aff == 0 || err != nil {
		return fmt.Errorf("upsert host no rows affected: %w", err)
	}

	return nil
}

func (r *hostRepo) GetByIdentity(ctx context.Context, identity string) (*Host, error) {
	var host Host

	query := "SELECT id, identity, alias, pin_hash, created_at, updated_at FROM hosts WHERE identity = $1"

	err := r.db.GetContext(ctx, &host, query, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get host by identity: %w", err)
	}

	return &host, nil
}
