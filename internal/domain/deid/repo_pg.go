package deid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/astrahealth/deid/internal/platform/seal"
)

// pgRepo stores mapping sets in the pii_mappings table. The entries column
// holds the JSON-encoded set, sealed with AES-256-GCM when a sealer is
// configured, so the original values never sit in cleartext at rest.
type pgRepo struct {
	pool   *pgxpool.Pool
	sealer *seal.Sealer
}

// NewPGRepository returns a PostgreSQL-backed repository. sealer may be nil,
// in which case entries are stored unsealed.
func NewPGRepository(pool *pgxpool.Pool, sealer *seal.Sealer) MappingRepository {
	return &pgRepo{pool: pool, sealer: sealer}
}

func (r *pgRepo) Put(ctx context.Context, id uuid.UUID, entries []MappingEntry) error {
	blob, sealed, err := encodeEntries(entries, r.sealer)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO pii_mappings (id, entries, sealed, entry_count)
		VALUES ($1, $2, $3, $4)`,
		id, blob, sealed, len(entries))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert mapping %s: %w", id, err)
	}
	return nil
}

func (r *pgRepo) Get(ctx context.Context, id uuid.UUID) ([]MappingEntry, error) {
	var (
		blob   []byte
		sealed bool
	)
	err := r.pool.QueryRow(ctx, `
		SELECT entries, sealed FROM pii_mappings WHERE id = $1`, id).
		Scan(&blob, &sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select mapping %s: %w", id, err)
	}
	return decodeEntries(blob, sealed, r.sealer)
}

func (r *pgRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pii_mappings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete mapping %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// encodeEntries serializes a mapping set and seals it when a sealer is
// present. Shared by the postgres and bbolt repositories.
func encodeEntries(entries []MappingEntry, sealer *seal.Sealer) ([]byte, bool, error) {
	blob, err := json.Marshal(entries)
	if err != nil {
		return nil, false, fmt.Errorf("encode mapping entries: %w", err)
	}
	if sealer == nil {
		return blob, false, nil
	}
	sealedBlob, err := sealer.Seal(blob)
	if err != nil {
		return nil, false, fmt.Errorf("seal mapping entries: %w", err)
	}
	return sealedBlob, true, nil
}

func decodeEntries(blob []byte, sealed bool, sealer *seal.Sealer) ([]MappingEntry, error) {
	if sealed {
		if sealer == nil {
			return nil, errors.New("mapping is sealed but no seal key is configured")
		}
		opened, err := sealer.Open(blob)
		if err != nil {
			return nil, fmt.Errorf("open sealed mapping: %w", err)
		}
		blob = opened
	}
	var entries []MappingEntry
	if err := json.Unmarshal(blob, &entries); err != nil {
		return nil, fmt.Errorf("decode mapping entries: %w", err)
	}
	return entries, nil
}
