package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL creates the single table the index lives in: opaque row-family
// keys and values exactly as internal/rowcodec produces them. Every row
// family (TxRow, RawTxRow, TxOutRow, TxInRow, BlockMeta) shares this table;
// the leading tag byte of Key is what distinguishes them.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS index_rows (
	key   BYTEA PRIMARY KEY,
	value BYTEA NOT NULL
);
`

// PostgresStore is the C2 ReadStore backed by the persisted index. The
// query path only reads through it; the row-family table is populated by
// the block-ingestion pipeline, which is out of scope here (spec.md §1).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and verifies connectivity with a ping.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("[store] connected to PostgreSQL index")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the index table if it does not already exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize index schema: %w", err)
	}
	log.Println("[store] index schema ready")
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM index_rows WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %x: %w", key, err)
	}
	return value, true, nil
}

// Scan returns every row whose key carries the given prefix, ordered by
// key, using a half-open [prefix, upperBound) range so Postgres can use the
// primary-key index instead of a sequential LIKE scan.
func (s *PostgresStore) Scan(ctx context.Context, prefix []byte) ([]Row, error) {
	upper := prefixUpperBound(prefix)

	var rows pgx.Rows
	var err error
	if upper == nil {
		rows, err = s.pool.Query(ctx, `SELECT key, value FROM index_rows WHERE key >= $1 ORDER BY key`, prefix)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT key, value FROM index_rows WHERE key >= $1 AND key < $2 ORDER BY key`, prefix, upper)
	}
	if err != nil {
		return nil, fmt.Errorf("scan prefix %x: %w", prefix, err)
	}
	defer rows.Close()

	out := make([]Row, 0, 16)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("scan prefix %x: %w", prefix, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan prefix %x: %w", prefix, err)
	}
	return out, nil
}

// Put writes a single row. Not part of ReadStore; used by test fixtures and
// the ingestion-adjacent tooling that populates the index out of band.
func (s *PostgresStore) Put(ctx context.Context, key, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO index_rows (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put %x: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}
