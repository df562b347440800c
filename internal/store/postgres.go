package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swapmeet-dev/swapmeet/internal/chat"
	"github.com/swapmeet-dev/swapmeet/internal/models"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// indexes guarding room creation races.
const uniqueViolation = "23505"

// PostgresStore backs the room directory and the durable message log.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const roomColumns = `id, flavor, subject_id, initiator_id, counterpart_id, active,
	member_count, COALESCE(last_message, ''), last_message_at, created_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	room := &models.Room{}
	err := row.Scan(
		&room.ID,
		&room.Flavor,
		&room.SubjectID,
		&room.InitiatorID,
		&room.CounterpartID,
		&room.Active,
		&room.MemberCount,
		&room.LastMessage,
		&room.LastMessageAt,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// GetRoom retrieves a room by id. Returns (nil, nil) when it does not exist.
func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1
	`, id))
}

// FindTradeRoom finds the room linking a subject with this pair of members,
// regardless of which of the two initiated it.
func (s *PostgresStore) FindTradeRoom(ctx context.Context, subjectID, a, b uuid.UUID) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM chat_rooms
		WHERE flavor = 'trade' AND subject_id = $1
		  AND ((initiator_id = $2 AND counterpart_id = $3) OR (initiator_id = $3 AND counterpart_id = $2))
	`, subjectID, a, b))
}

// FindMeetupRoom finds the single room of a meetup subject.
func (s *PostgresStore) FindMeetupRoom(ctx context.Context, subjectID uuid.UUID) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM chat_rooms
		WHERE flavor = 'meetup' AND subject_id = $1
	`, subjectID))
}

// CreateTradeRoom inserts the room and both memberships in one transaction.
// A unique-index conflict is mapped to chat.ErrDuplicateRoom.
func (s *PostgresStore) CreateTradeRoom(ctx context.Context, room *models.Room, memberships []*models.Membership) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_rooms (id, flavor, subject_id, initiator_id, counterpart_id, active, member_count, created_at)
		VALUES ($1, 'trade', $2, $3, $4, $5, $6, $7)
	`, room.ID, room.SubjectID, room.InitiatorID, room.CounterpartID, room.Active, room.MemberCount, room.CreatedAt)
	if err != nil {
		return mapDuplicate(err)
	}

	for _, m := range memberships {
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_room_members (room_id, member_id, role, active, has_entered_before, last_entered_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, m.RoomID, m.MemberID, m.Role, m.Active, m.HasEnteredBefore, m.LastEnteredAt, m.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CreateMeetupRoom inserts an empty room for a meetup subject.
func (s *PostgresStore) CreateMeetupRoom(ctx context.Context, room *models.Room) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_rooms (id, flavor, subject_id, active, member_count, created_at)
		VALUES ($1, 'meetup', $2, $3, 0, $4)
	`, room.ID, room.SubjectID, room.Active, room.CreatedAt)
	return mapDuplicate(err)
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return chat.ErrDuplicateRoom
	}
	return err
}

const membershipColumns = `room_id, member_id, role, active, has_entered_before,
	last_entered_at, last_read_message_id, created_at`

func scanMembership(row pgx.Row) (*models.Membership, error) {
	m := &models.Membership{}
	err := row.Scan(
		&m.RoomID,
		&m.MemberID,
		&m.Role,
		&m.Active,
		&m.HasEnteredBefore,
		&m.LastEnteredAt,
		&m.LastReadMessageID,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// GetMembership retrieves a membership row. Returns (nil, nil) when the
// member never touched the room.
func (s *PostgresStore) GetMembership(ctx context.Context, roomID, memberID uuid.UUID) (*models.Membership, error) {
	return scanMembership(s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM chat_room_members
		WHERE room_id = $1 AND member_id = $2
	`, roomID, memberID))
}

// Join creates, reactivates or refreshes the membership. The row lock keeps
// a concurrent join/leave pair for the same (room, member) serialized; the
// member-count adjustment rides in the same transaction.
func (s *PostgresStore) Join(ctx context.Context, roomID, memberID uuid.UUID, at time.Time) (*chat.JoinOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	existing, err := scanMembership(tx.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM chat_room_members
		WHERE room_id = $1 AND member_id = $2
		FOR UPDATE
	`, roomID, memberID))
	if err != nil {
		return nil, err
	}

	outcome := &chat.JoinOutcome{}
	switch {
	case existing == nil:
		outcome.FirstEntry = true
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_room_members (room_id, member_id, role, active, has_entered_before, last_entered_at, created_at)
			VALUES ($1, $2, 'participant', TRUE, TRUE, $3, $3)
		`, roomID, memberID, at)
		if err != nil {
			return nil, err
		}
		if err = s.bumpMemberCount(ctx, tx, roomID, 1); err != nil {
			return nil, err
		}

	case !existing.Active:
		outcome.PrevEnteredAt = existing.LastEnteredAt
		_, err = tx.Exec(ctx, `
			UPDATE chat_room_members SET active = TRUE, last_entered_at = $3
			WHERE room_id = $1 AND member_id = $2
		`, roomID, memberID, at)
		if err != nil {
			return nil, err
		}
		if err = s.bumpMemberCount(ctx, tx, roomID, 1); err != nil {
			return nil, err
		}

	default:
		outcome.PrevEnteredAt = existing.LastEnteredAt
		_, err = tx.Exec(ctx, `
			UPDATE chat_room_members SET last_entered_at = $3
			WHERE room_id = $1 AND member_id = $2
		`, roomID, memberID, at)
		if err != nil {
			return nil, err
		}
	}

	outcome.Membership, err = scanMembership(tx.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM chat_room_members
		WHERE room_id = $1 AND member_id = $2
	`, roomID, memberID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *PostgresStore) bumpMemberCount(ctx context.Context, tx pgx.Tx, roomID uuid.UUID, delta int) error {
	_, err := tx.Exec(ctx, `
		UPDATE chat_rooms SET member_count = member_count + $2, active = TRUE
		WHERE id = $1
	`, roomID, delta)
	return err
}

// Leave flips an active membership to inactive and decrements the count.
// The guarded UPDATE makes a second leave a no-op. A count of zero
// deactivates the room within the transaction.
func (s *PostgresStore) Leave(ctx context.Context, roomID, memberID uuid.UUID) (bool, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE chat_room_members SET active = FALSE
		WHERE room_id = $1 AND member_id = $2 AND active
	`, roomID, memberID)
	if err != nil {
		return false, 0, err
	}
	if tag.RowsAffected() == 0 {
		return false, 0, tx.Commit(ctx)
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		UPDATE chat_rooms SET member_count = member_count - 1
		WHERE id = $1
		RETURNING member_count
	`, roomID).Scan(&remaining)
	if err != nil {
		return false, 0, err
	}

	if remaining <= 0 {
		_, err = tx.Exec(ctx, `UPDATE chat_rooms SET active = FALSE WHERE id = $1`, roomID)
		if err != nil {
			return false, 0, err
		}
	}

	return true, remaining, tx.Commit(ctx)
}

// SetRoomActive toggles the room's activity flag.
func (s *PostgresStore) SetRoomActive(ctx context.Context, roomID uuid.UUID, active bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE chat_rooms SET active = $2 WHERE id = $1`, roomID, active)
	return err
}

// UpdateLastMessage refreshes the denormalized snapshot. Last writer wins;
// callers serialize through the gateway per room in practice.
func (s *PostgresStore) UpdateLastMessage(ctx context.Context, roomID uuid.UUID, content string, sentAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE chat_rooms SET last_message = $2, last_message_at = $3 WHERE id = $1
	`, roomID, content, sentAt)
	return err
}

// SetLastRead moves the member's read pointer.
func (s *PostgresStore) SetLastRead(ctx context.Context, roomID, memberID uuid.UUID, messageID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE chat_room_members SET last_read_message_id = $3
		WHERE room_id = $1 AND member_id = $2
	`, roomID, memberID, messageID)
	return err
}

// SubjectStatus returns the subject's lifecycle status, or "" when the
// subject does not exist.
func (s *PostgresStore) SubjectStatus(ctx context.Context, subjectID uuid.UUID) (string, error) {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM subjects WHERE id = $1`, subjectID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return status, nil
}

// ListMemberRooms lists the member's rooms with snapshots and unread
// counts, most recent activity first. Unread counting leans on ULID ids
// being ordered: everything above the read pointer is unread.
func (s *PostgresStore) ListMemberRooms(ctx context.Context, memberID uuid.UUID) ([]models.RoomSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.flavor, r.subject_id, r.initiator_id, r.counterpart_id, r.active,
		       r.member_count, COALESCE(r.last_message, ''), r.last_message_at, r.created_at,
		       m.room_id, m.member_id, m.role, m.active, m.has_entered_before,
		       m.last_entered_at, m.last_read_message_id, m.created_at,
		       (SELECT COUNT(*) FROM chat_messages msg
		        WHERE msg.room_id = r.id
		          AND msg.id > COALESCE(m.last_read_message_id, '')
		          AND msg.sender_id IS DISTINCT FROM m.member_id) AS unread
		FROM chat_rooms r
		JOIN chat_room_members m ON m.room_id = r.id
		WHERE m.member_id = $1 AND m.active
		ORDER BY r.last_message_at DESC NULLS LAST, r.created_at DESC
	`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.RoomSummary, 0)
	for rows.Next() {
		var sum models.RoomSummary
		err := rows.Scan(
			&sum.Room.ID, &sum.Room.Flavor, &sum.Room.SubjectID,
			&sum.Room.InitiatorID, &sum.Room.CounterpartID, &sum.Room.Active,
			&sum.Room.MemberCount, &sum.Room.LastMessage, &sum.Room.LastMessageAt, &sum.Room.CreatedAt,
			&sum.Membership.RoomID, &sum.Membership.MemberID, &sum.Membership.Role,
			&sum.Membership.Active, &sum.Membership.HasEnteredBefore,
			&sum.Membership.LastEnteredAt, &sum.Membership.LastReadMessageID, &sum.Membership.CreatedAt,
			&sum.UnreadCount,
		)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// GetMember retrieves a member's display profile. Returns (nil, nil) when
// the member does not exist.
func (s *PostgresStore) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	member := &models.Member{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, nickname, COALESCE(avatar_url, ''), created_at FROM members WHERE id = $1
	`, id).Scan(&member.ID, &member.Nickname, &member.AvatarURL, &member.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return member, nil
}

// Append durably persists a message. This is the accept point: if it fails
// the whole submission fails.
func (s *PostgresStore) Append(ctx context.Context, msg *models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, room_id, sender_id, content, kind, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.Kind, msg.SentAt)
	return err
}

const messageColumns = `id, room_id, sender_id, content, kind, sent_at`

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()
	msgs := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.Kind, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// FindBefore returns history ordered (sent_at, id) descending; a nil cursor
// means the most recent page.
func (s *PostgresStore) FindBefore(ctx context.Context, roomID uuid.UUID, cursor *time.Time, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE room_id = $1 AND ($2::timestamptz IS NULL OR sent_at < $2)
		ORDER BY sent_at DESC, id DESC
		LIMIT $3
	`, roomID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// FindAfter is FindBefore bounded below by a session window.
func (s *PostgresStore) FindAfter(ctx context.Context, roomID uuid.UUID, after time.Time, cursor *time.Time, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM chat_messages
		WHERE room_id = $1 AND sent_at > $2 AND ($3::timestamptz IS NULL OR sent_at < $3)
		ORDER BY sent_at DESC, id DESC
		LIMIT $4
	`, roomID, after, cursor, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

var (
	_ chat.RoomStore  = (*PostgresStore)(nil)
	_ chat.MessageLog = (*PostgresStore)(nil)
)
