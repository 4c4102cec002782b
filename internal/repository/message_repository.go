package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageStore is the durable log consumed by the delivery engine: append,
// point lookup, the two replay range queries, and the flag transitions.
// Messages are never deleted here; pending rows are only superseded by the
// delivered transition.
type MessageStore interface {
	Save(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	FetchUndelivered(ctx context.Context, receiver string) ([]*models.Message, error)
	FetchChannelBacklog(ctx context.Context, channels []string, since time.Time, excludeSender string) ([]*models.Message, error)
	ChannelsFor(ctx context.Context, sender string) ([]string, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkRead(ctx context.Context, id uuid.UUID) error
	CountUndelivered(ctx context.Context) (int64, error)
}

type PostgresMessagesRepo struct {
	pool *pgxpool.Pool
}

func NewMessagesRepo(pool *pgxpool.Pool) MessageStore {
	return &PostgresMessagesRepo{pool: pool}
}

const messageColumns = `id, sender, receiver, channel_name, body, mode, kind, media_url, filename, mime_type, is_delivered, delivered_at, is_read, read_at, created_at`

func (r *PostgresMessagesRepo) Save(ctx context.Context, m *models.Message) error {
	query := `
        INSERT INTO messages (id, sender, receiver, channel_name, body, mode, kind, media_url, filename, mime_type, is_delivered, delivered_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (id) DO NOTHING
    `

	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.Sender,
		nullable(m.Receiver),
		nullable(m.Channel),
		m.Body,
		m.Mode,
		m.Kind,
		nullable(m.MediaURL),
		nullable(m.Filename),
		nullable(m.MimeType),
		m.Delivered,
		m.DeliveredAt,
		m.CreatedAt,
	)
	if err != nil {
		log.Printf("[REPO ERROR] Failed to save message %s from %s: %v", m.ID, m.Sender, err)
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (r *PostgresMessagesRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	m, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return m, nil
}

// FetchUndelivered returns pending private messages for receiver, oldest
// first so conversational order survives replay.
func (r *PostgresMessagesRepo) FetchUndelivered(ctx context.Context, receiver string) ([]*models.Message, error) {
	query := `
        SELECT ` + messageColumns + `
        FROM messages
        WHERE mode = 'private'
          AND receiver = $1
          AND is_delivered = FALSE
        ORDER BY created_at ASC
    `

	rows, err := r.pool.Query(ctx, query, receiver)
	if err != nil {
		log.Printf("[REPO ERROR] Undelivered fetch failed for %s: %v", receiver, err)
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// FetchChannelBacklog returns group messages in the given channels created
// after since, excluding the user's own, oldest first.
func (r *PostgresMessagesRepo) FetchChannelBacklog(ctx context.Context, channels []string, since time.Time, excludeSender string) ([]*models.Message, error) {
	if len(channels) == 0 {
		return nil, nil
	}

	query := `
        SELECT ` + messageColumns + `
        FROM messages
        WHERE mode = 'group'
          AND channel_name = ANY($1)
          AND sender <> $2
          AND created_at > $3
        ORDER BY created_at ASC
    `

	rows, err := r.pool.Query(ctx, query, channels, excludeSender, since)
	if err != nil {
		log.Printf("[REPO ERROR] Channel backlog fetch failed for %s: %v", excludeSender, err)
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ChannelsFor derives the channel set a user participates in from their send
// history. A user who only ever received in a channel is not counted.
func (r *PostgresMessagesRepo) ChannelsFor(ctx context.Context, sender string) ([]string, error) {
	query := `
        SELECT DISTINCT channel_name
        FROM messages
        WHERE mode = 'group' AND sender = $1 AND channel_name IS NOT NULL
    `

	rows, err := r.pool.Query(ctx, query, sender)
	if err != nil {
		log.Printf("[REPO ERROR] Channel lookup failed for %s: %v", sender, err)
		return nil, err
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		channels = append(channels, name)
	}
	return channels, rows.Err()
}

// MarkDelivered transitions pending -> delivered. The guard keeps the
// transition monotonic under redelivery.
func (r *PostgresMessagesRepo) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE messages
        SET is_delivered = TRUE, delivered_at = now()
        WHERE id = $1 AND is_delivered = FALSE`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		log.Printf("[REPO ERROR] Failed to mark message %s delivered: %v", id, err)
		return fmt.Errorf("mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("[REPO INFO] Message %s already delivered or missing", id)
	}
	return nil
}

func (r *PostgresMessagesRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE messages
        SET is_read = TRUE, read_at = now()
        WHERE id = $1 AND is_read = FALSE`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		log.Printf("[REPO ERROR] Failed to mark message %s read: %v", id, err)
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (r *PostgresMessagesRepo) CountUndelivered(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE mode = 'private' AND is_delivered = FALSE`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count undelivered: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	var receiver, channel, mediaURL, filename, mimeType *string
	err := row.Scan(
		&m.ID,
		&m.Sender,
		&receiver,
		&channel,
		&m.Body,
		&m.Mode,
		&m.Kind,
		&mediaURL,
		&filename,
		&mimeType,
		&m.Delivered,
		&m.DeliveredAt,
		&m.Read,
		&m.ReadAt,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Receiver = deref(receiver)
	m.Channel = deref(channel)
	m.MediaURL = deref(mediaURL)
	m.Filename = deref(filename)
	m.MimeType = deref(mimeType)
	return m, nil
}

func collectMessages(rows interface {
	rowScanner
	Next() bool
	Err() error
}) ([]*models.Message, error) {
	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			log.Printf("[REPO ERROR] Scan failed: %v", err)
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
