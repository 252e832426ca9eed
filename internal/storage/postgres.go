package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novelbytelabs/arqonbus/internal/envelope"
)

// PostgresBackend durably persists message history. It implements only
// Backend, not GroupBackend: operator task dispatch belongs to the hot,
// low-latency path (Redis Streams), while Postgres backs the audit
// trail clients query through the history command.
type PostgresBackend struct {
	pool *pgxpool.Pool
	wire envelope.Wire
}

func NewPostgresBackend(ctx context.Context, dsn string, wire envelope.Wire) (*PostgresBackend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresBackend{pool: pool, wire: wire}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS arqonbus_envelopes (
	envelope_id   TEXT PRIMARY KEY,
	room          TEXT NOT NULL DEFAULT '',
	channel       TEXT NOT NULL DEFAULT '',
	envelope_type TEXT NOT NULL,
	payload       BYTEA NOT NULL,
	stored_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS arqonbus_envelopes_room_channel_idx
	ON arqonbus_envelopes (room, channel, stored_at DESC);
`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("storage: ensure schema: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}

// Append inserts env, ignoring duplicate IDs so retried appends after a
// transient failure stay idempotent.
func (p *PostgresBackend) Append(ctx context.Context, env *envelope.Envelope) (string, error) {
	data, err := env.Serialize(p.wire)
	if err != nil {
		return "", fmt.Errorf("storage: serialize envelope: %w", err)
	}
	const q = `
INSERT INTO arqonbus_envelopes (envelope_id, room, channel, envelope_type, payload, stored_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (envelope_id) DO NOTHING
`
	_, err = p.pool.Exec(ctx, q, env.ID, env.Room, env.Channel, string(env.Type), data, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("storage: insert envelope: %w", err)
	}
	return env.ID, nil
}

func (p *PostgresBackend) History(ctx context.Context, room, channel string, limit int, since, until *time.Time) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT payload, stored_at FROM arqonbus_envelopes
WHERE ($1 = '' OR room = $1)
  AND ($2 = '' OR channel = $2)
  AND ($3::timestamptz IS NULL OR stored_at >= $3)
  AND ($4::timestamptz IS NULL OR stored_at <= $4)
ORDER BY stored_at DESC
LIMIT $5
`
	rows, err := p.pool.Query(ctx, q, room, channel, since, until, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var payload []byte
		var storedAt time.Time
		if err := rows.Scan(&payload, &storedAt); err != nil {
			return nil, fmt.Errorf("storage: scan history row: %w", err)
		}
		env, err := envelope.Parse(payload, p.wire)
		if err != nil {
			continue
		}
		out = append(out, Record{Envelope: env, StoredAt: storedAt})
	}
	return out, rows.Err()
}

func (p *PostgresBackend) Health(ctx context.Context) Health {
	if err := p.pool.Ping(ctx); err != nil {
		return Health{Backend: "postgres", Healthy: false, Detail: err.Error()}
	}
	return Health{Backend: "postgres", Healthy: true}
}
