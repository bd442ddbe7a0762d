package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "skillproof/pkg/platform/audit"
	txcontext "skillproof/pkg/platform/tx"
)

// NotifyChannel is the LISTEN/NOTIFY channel signalled for every outbox insert.
const NotifyChannel = "ledger_outbox"

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the caller's transaction and
// shipped to Kafka by the outbox worker.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// execer joins the transaction carried by ctx, if any.
func (s *Store) execer(ctx context.Context) txcontext.DBTX {
	return txcontext.Executor(ctx, s.db)
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID        string `json:"ID"`
	Category  string `json:"Category"`
	Timestamp string `json:"Timestamp"`
	Height    uint64 `json:"Height"`
	Subject   string `json:"Subject"`
	ActorID   string `json:"ActorID,omitempty"`
	Action    string `json:"Action"`
	Resource  string `json:"Resource,omitempty"`
	Detail    string `json:"Detail,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing and
// signals the outbox worker. The notification is delivered on commit.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	entryID := uuid.New()

	// Always derive category from action - eventCategories map is the source of truth
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:        entryID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Height:    event.Height,
		Subject:   event.Subject,
		ActorID:   event.ActorID,
		Action:    event.Action,
		Resource:  event.Resource,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	exec := s.execer(ctx)
	_, err = exec.ExecContext(ctx, query,
		entryID,
		"principal",
		event.Subject,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, entryID.String()); err != nil {
		return fmt.Errorf("notify outbox: %w", err)
	}
	return nil
}

// ListBySubject returns events where the principal is subject or actor, in commit order.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := `
		SELECT payload
		FROM outbox
		WHERE aggregate_id = $1 OR payload->>'ActorID' = $1
		ORDER BY seq
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outbox payload: %w", err)
		}
		event, err := decodePayload(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

// FetchPending returns up to limit unpublished entries, oldest first.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var e audit.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps entries as shipped.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
		time.Now(), pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func decodePayload(raw []byte) (audit.Event, error) {
	var p outboxPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return audit.Event{}, fmt.Errorf("unmarshal outbox payload: %w", err)
	}
	event := audit.Event{
		Category:  audit.EventCategory(p.Category),
		Height:    p.Height,
		Subject:   p.Subject,
		ActorID:   p.ActorID,
		Action:    p.Action,
		Resource:  p.Resource,
		Detail:    p.Detail,
		RequestID: p.RequestID,
	}
	if ts, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
		event.Timestamp = ts
	}
	return event, nil
}
