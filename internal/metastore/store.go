// Package metastore persists conversation metadata in SQLite so the
// conversation list renders instantly on restart, before the network answers.
package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/skald-im/skald/internal/chat"
)

// Store is a per-account conversation metadata store. It implements
// chat.MetaSink.
type Store struct {
	db      *sql.DB
	account string
}

// Open opens (and if needed creates) the metadata database, scoped to one
// account.
func Open(path, account string) (*Store, error) {
	if account == "" {
		return nil, errors.New("account is required")
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to metadata database: %w", err)
	}

	store := &Store{db: db, account: account}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			account TEXT NOT NULL,
			id INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			last_sender TEXT NOT NULL DEFAULT '',
			last_body TEXT NOT NULL DEFAULT '',
			last_activity TEXT,
			unread INTEGER NOT NULL DEFAULT 0,
			newest_seen INTEGER NOT NULL DEFAULT 0,
			last_read INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (account, id)
		)`,
		`CREATE INDEX IF NOT EXISTS conversations_activity_idx ON conversations(account, last_activity)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize metadata schema: %w", err)
		}
	}
	return nil
}

// UpsertMeta stores a metadata snapshot for a conversation. The newest-seen
// watermark never moves backwards, so a stale snapshot cannot roll back what
// a live event already recorded.
func (s *Store) UpsertMeta(ctx context.Context, meta chat.ConversationMeta) error {
	if s == nil || s.db == nil {
		return errors.New("metadata store unavailable")
	}

	activity := ""
	if !meta.LastActivity.IsZero() {
		activity = meta.LastActivity.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (account, id, title, last_sender, last_body, last_activity, unread, newest_seen, last_read)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?)
		ON CONFLICT(account, id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE conversations.title END,
			last_sender = excluded.last_sender,
			last_body = excluded.last_body,
			last_activity = COALESCE(excluded.last_activity, conversations.last_activity),
			unread = excluded.unread,
			newest_seen = MAX(conversations.newest_seen, excluded.newest_seen),
			last_read = MAX(conversations.last_read, excluded.last_read)
	`, s.account, int64(meta.ID), meta.Title, meta.LastSender, meta.LastBody, activity,
		meta.Unread, uint64(meta.NewestSeen), uint64(meta.LastRead))
	if err != nil {
		return fmt.Errorf("failed to upsert conversation meta: %w", err)
	}
	return nil
}

// SetReadWatermark records the read position and clears the unread count.
func (s *Store) SetReadWatermark(ctx context.Context, id chat.ConversationID, last chat.MessageID) error {
	if s == nil || s.db == nil {
		return errors.New("metadata store unavailable")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (account, id, last_read, unread)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(account, id) DO UPDATE SET
			last_read = MAX(conversations.last_read, excluded.last_read),
			unread = 0
	`, s.account, int64(id), uint64(last))
	if err != nil {
		return fmt.Errorf("failed to set read watermark: %w", err)
	}
	return nil
}

// List returns all stored conversations, most recently active first.
func (s *Store) List(ctx context.Context) ([]chat.ConversationMeta, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("metadata store unavailable")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, last_sender, last_body, last_activity, unread, newest_seen, last_read
		FROM conversations
		WHERE account = ?
		ORDER BY last_activity DESC, id ASC
	`, s.account)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var metas []chat.ConversationMeta
	for rows.Next() {
		var (
			id          int64
			title       string
			lastSender  string
			lastBody    string
			activityRaw sql.NullString
			unread      int
			newestSeen  uint64
			lastRead    uint64
		)
		if err := rows.Scan(&id, &title, &lastSender, &lastBody, &activityRaw, &unread, &newestSeen, &lastRead); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}

		meta := chat.ConversationMeta{
			ID:         chat.ConversationID(id),
			Title:      title,
			LastSender: lastSender,
			LastBody:   lastBody,
			Unread:     unread,
			NewestSeen: chat.MessageID(newestSeen),
			LastRead:   chat.MessageID(lastRead),
		}
		if activityRaw.Valid {
			if parsed, err := time.Parse(time.RFC3339Nano, activityRaw.String); err == nil {
				meta.LastActivity = parsed
			}
		}
		metas = append(metas, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation query error: %w", err)
	}

	return metas, nil
}

// Purge removes all conversations for the account, used on logout.
func (s *Store) Purge(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("metadata store unavailable")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE account = ?`, s.account); err != nil {
		return fmt.Errorf("failed to purge conversations: %w", err)
	}
	return nil
}
