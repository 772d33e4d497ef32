// Package audit keeps a disclosure trail for the de-identification pipeline.
// Every mask, remap, and purge is recorded with the record identifier, the
// acting principal, and entry counts. Mapped values are never recorded, so
// the trail can be retained without becoming a second PII store.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Action identifies the pipeline operation being recorded.
type Action string

const (
	ActionMask  Action = "mask"
	ActionRemap Action = "remap"
	ActionPurge Action = "purge"
)

// Outcome of the recorded operation.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is one disclosure-trail entry.
type Event struct {
	ID         uuid.UUID `json:"id"`
	RecordID   uuid.UUID `json:"record_id"`
	Action     Action    `json:"action"`
	Actor      string    `json:"actor"`
	EntryCount int       `json:"entry_count"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Recorder persists disclosure events. Recording is best-effort from the
// caller's perspective: a failed audit write must not fail the operation it
// describes, but it is still surfaced for logging.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// LogRecorder writes events to the structured log. Used with the memory and
// bolt store backends, where no database is available.
type LogRecorder struct {
	log zerolog.Logger
}

func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log.With().Str("component", "audit").Logger()}
}

func (r *LogRecorder) Record(ctx context.Context, ev Event) error {
	r.log.Info().
		Str("record_id", ev.RecordID.String()).
		Str("action", string(ev.Action)).
		Str("actor", ev.Actor).
		Int("entry_count", ev.EntryCount).
		Str("outcome", ev.Outcome).
		Str("detail", ev.Detail).
		Msg("disclosure")
	return nil
}

// PGRecorder writes events to the disclosure_log table.
type PGRecorder struct {
	pool *pgxpool.Pool
}

func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

func (r *PGRecorder) Record(ctx context.Context, ev Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO disclosure_log (id, record_id, action, actor, entry_count, outcome, detail, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.RecordID, ev.Action, ev.Actor, ev.EntryCount, ev.Outcome, ev.Detail, ev.RecordedAt)
	return err
}
