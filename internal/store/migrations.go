package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently on startup. The partial unique indexes are
// the race arbiters for room creation: concurrent creations for the same
// pair (trade) or subject (meetup) collapse onto one row.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id         UUID PRIMARY KEY,
		nickname   TEXT NOT NULL,
		avatar_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id         UUID PRIMARY KEY,
		kind       TEXT NOT NULL,
		owner_id   UUID NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT 'open',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
		id              UUID PRIMARY KEY,
		flavor          TEXT NOT NULL,
		subject_id      UUID NOT NULL,
		initiator_id    UUID,
		counterpart_id  UUID,
		active          BOOLEAN NOT NULL DEFAULT TRUE,
		member_count    INTEGER NOT NULL DEFAULT 0,
		last_message    TEXT,
		last_message_at TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// The pair is normalized so the index also arbitrates the race where the
	// two parties each create the room from their own side.
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_trade_pair
		ON chat_rooms (subject_id, LEAST(initiator_id, counterpart_id), GREATEST(initiator_id, counterpart_id))
		WHERE flavor = 'trade'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS chat_rooms_meetup_subject
		ON chat_rooms (subject_id)
		WHERE flavor = 'meetup'`,
	`CREATE TABLE IF NOT EXISTS chat_room_members (
		room_id              UUID NOT NULL REFERENCES chat_rooms (id),
		member_id            UUID NOT NULL,
		role                 TEXT NOT NULL DEFAULT 'participant',
		active               BOOLEAN NOT NULL DEFAULT TRUE,
		has_entered_before   BOOLEAN NOT NULL DEFAULT FALSE,
		last_entered_at      TIMESTAMPTZ,
		last_read_message_id TEXT,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (room_id, member_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id        TEXT PRIMARY KEY,
		room_id   UUID NOT NULL REFERENCES chat_rooms (id),
		sender_id UUID,
		content   TEXT NOT NULL,
		kind      TEXT NOT NULL DEFAULT 'talk',
		sent_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS chat_messages_room_time
		ON chat_messages (room_id, sent_at DESC, id DESC)`,
}

// RunMigrations brings the schema up to date.
func RunMigrations(ctx context.Context, databaseURL string) error {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
