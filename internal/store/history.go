// Package store provides the local SQLite archive of synced
// conversations and messages, for offline inspection via the CLI.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Keta432/medichat/internal/models"
)

const (
	defaultBusyTimeoutMs = 5000
	retryAttempts        = 3
	retryBackoff         = 50 * time.Millisecond
)

// HistoryStore archives synced portal data in a local SQLite file.
// Writes replace whole rows; the server copy is always authoritative.
type HistoryStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string, busyTimeoutMs int) (*HistoryStore, error) {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = defaultBusyTimeoutMs
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path, busyTimeoutMs)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	store := &HistoryStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *HistoryStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			counterpart_id TEXT PRIMARY KEY,
			counterpart_name TEXT NOT NULL,
			counterpart_email TEXT NOT NULL DEFAULT '',
			counterpart_role TEXT NOT NULL,
			counterpart_hospital TEXT NOT NULL DEFAULT '',
			last_content TEXT NOT NULL DEFAULT '',
			last_sender TEXT NOT NULL DEFAULT '',
			unread_count INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			counterpart_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			receiver_id TEXT NOT NULL,
			content TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_thread_idx ON messages(counterpart_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize history schema: %w", err)
		}
	}
	return nil
}

// SaveConversations upserts the latest conversation snapshot.
func (s *HistoryStore) SaveConversations(ctx context.Context, summaries []models.ConversationSummary) error {
	return s.transactionWithRetry(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO conversations (counterpart_id, counterpart_name, counterpart_email, counterpart_role, counterpart_hospital, last_content, last_sender, unread_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(counterpart_id) DO UPDATE SET
				counterpart_name=excluded.counterpart_name,
				counterpart_email=excluded.counterpart_email,
				counterpart_role=excluded.counterpart_role,
				counterpart_hospital=excluded.counterpart_hospital,
				last_content=excluded.last_content,
				last_sender=excluded.last_sender,
				unread_count=excluded.unread_count,
				updated_at=excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare conversation upsert: %w", err)
		}
		defer stmt.Close()

		for _, summary := range summaries {
			if summary.Placeholder {
				continue
			}
			_, err := stmt.ExecContext(ctx,
				summary.Participant.ID,
				summary.Participant.Name,
				summary.Participant.Email,
				string(summary.Participant.Role),
				summary.Participant.Hospital,
				summary.LastMessage.Content,
				summary.LastMessage.SenderID,
				summary.UnreadCount,
				summary.UpdatedAt.UTC().Format(time.RFC3339Nano),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert conversation: %w", err)
			}
		}
		return nil
	})
}

// SaveMessages upserts a synced thread. Provisional entries and rows
// failing validation are skipped; only well-formed server-confirmed
// messages are archived.
func (s *HistoryStore) SaveMessages(ctx context.Context, counterpartID string, messages []models.Message) error {
	return s.transactionWithRetry(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (id, counterpart_id, sender_id, sender_name, receiver_id, content, read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				read=excluded.read,
				content=excluded.content
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare message upsert: %w", err)
		}
		defer stmt.Close()

		for _, msg := range messages {
			if msg.Provisional {
				continue
			}
			if err := msg.Validate(); err != nil {
				continue
			}
			_, err := stmt.ExecContext(ctx,
				msg.ID,
				counterpartID,
				msg.Sender.ID,
				msg.Sender.Name,
				msg.Receiver.ID,
				msg.Content,
				boolToInt(msg.Read),
				msg.CreatedAt.UTC().Format(time.RFC3339Nano),
			)
			if err != nil {
				return fmt.Errorf("failed to upsert message: %w", err)
			}
		}
		return nil
	})
}

// LoadConversations returns the archived conversation list, most
// recently updated first.
func (s *HistoryStore) LoadConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT counterpart_id, counterpart_name, counterpart_email, counterpart_role, counterpart_hospital, last_content, last_sender, unread_count, updated_at
		FROM conversations
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []models.ConversationSummary
	for rows.Next() {
		var summary models.ConversationSummary
		var role, updatedAt string
		if err := rows.Scan(
			&summary.Participant.ID,
			&summary.Participant.Name,
			&summary.Participant.Email,
			&role,
			&summary.Participant.Hospital,
			&summary.LastMessage.Content,
			&summary.LastMessage.SenderID,
			&summary.UnreadCount,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		summary.Participant.Role = models.Role(role)
		summary.UpdatedAt = parseTimestamp(updatedAt)
		summary.LastMessage.Timestamp = summary.UpdatedAt
		summary.ID = summary.Participant.ID
		out = append(out, summary)
	}
	return out, rows.Err()
}

// LoadMessages returns the archived thread for a counterpart in
// chronological order.
func (s *HistoryStore) LoadMessages(ctx context.Context, counterpartID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, sender_name, receiver_id, content, read, created_at
		FROM messages
		WHERE counterpart_id = ?
		ORDER BY created_at ASC
	`, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var msg models.Message
		var read int
		var createdAt string
		if err := rows.Scan(
			&msg.ID,
			&msg.Sender.ID,
			&msg.Sender.Name,
			&msg.Receiver.ID,
			&msg.Content,
			&read,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Read = read != 0
		msg.CreatedAt = parseTimestamp(createdAt)
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *HistoryStore) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// transactionWithRetry retries busy-database failures with exponential
// backoff before giving up.
func (s *HistoryStore) transactionWithRetry(ctx context.Context, fn func(*sql.Tx) error) error {
	backoff := retryBackoff
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := s.transaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusyError(err) || attempt+1 >= retryAttempts {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "database is locked") ||
		strings.Contains(message, "database is busy") ||
		strings.Contains(message, "sqlite_busy")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
