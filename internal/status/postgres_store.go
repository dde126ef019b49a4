package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// The merge happens inside one statement, so concurrent field updates for a
// tenant cannot drop each other.
const upsertStatusField = `
INSERT INTO zone_status (partner_id, fields, last_updated)
VALUES ($1, jsonb_build_object($2::text, $3::text), $4)
ON CONFLICT (partner_id) DO UPDATE
SET fields = zone_status.fields || EXCLUDED.fields,
    last_updated = GREATEST(zone_status.last_updated, EXCLUDED.last_updated)`

const selectStatus = `SELECT fields, last_updated FROM zone_status WHERE partner_id = $1`

type PostgresStore struct {
	db  DBTX
	now func() time.Time
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: time.Now,
	}
}

func (s *PostgresStore) Update(ctx context.Context, partnerID, field, value string) error {
	id, err := zonepartner.ParsePartnerID(partnerID)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, upsertStatusField, id, field, value, s.now().UTC()); err != nil {
		slog.Error("Failed to update status", "partner_id", id, "field", field, "error", err)
		return fmt.Errorf("update status for %s: %w", id, err)
	}

	slog.Info("Status updated", "partner_id", id, "field", field, "value", value)
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, partnerID string) (Record, error) {
	id, err := zonepartner.ParsePartnerID(partnerID)
	if err != nil {
		return Record{}, ErrNotFound
	}

	var record Record
	err = s.db.QueryRow(ctx, selectStatus, id).Scan(&record.Fields, &record.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get status for %s: %w", id, err)
	}
	record.LastUpdated = record.LastUpdated.UTC()
	return record, nil
}
