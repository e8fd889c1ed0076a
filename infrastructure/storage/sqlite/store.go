// Package sqlite is the single-file alternative to the badger store.
// One Store serves both the message and the user repository.
package sqlite

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc serializes writers anyway; a single connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			full_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			profile_image TEXT NOT NULL DEFAULT '',
			bio           TEXT NOT NULL DEFAULT '',
			is_online     INTEGER NOT NULL DEFAULT 0,
			roles         TEXT NOT NULL DEFAULT 'user',
			created_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			sender_id   TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			text        TEXT NOT NULL DEFAULT '',
			image       TEXT NOT NULL DEFAULT '',
			seen        INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_conversation ON messages (sender_id, receiver_id, seen, created_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StoreMessage(ctx context.Context, m domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, text, image, seen, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.SenderID, m.ReceiverID, m.Text, m.Image, m.Seen, m.CreatedAt.UnixNano())
	return err
}

func (s *Store) MarkSeen(ctx context.Context, senderID, receiverID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET seen = 1 WHERE sender_id = ? AND receiver_id = ? AND seen = 0`,
		senderID, receiverID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) MarkOneSeen(ctx context.Context, id uuid.UUID, receiverID string) (domain.Message, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET seen = 1 WHERE id = ? AND receiver_id = ?`, id.String(), receiverID)
	if err != nil {
		return domain.Message{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Message{}, err
	} else if n == 0 {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, text, image, seen, created_at FROM messages WHERE id = ?`, id.String())
	return scanMessage(row)
}

func (s *Store) CountUnseen(ctx context.Context, senderID, receiverID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE sender_id = ? AND receiver_id = ? AND seen = 0`,
		senderID, receiverID).Scan(&count)
	return count, err
}

func (s *Store) GetConversation(ctx context.Context, a, b string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, text, image, seen, created_at FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at, id`,
		a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, identity domain.Identity) (string, error) {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	if len(identity.Roles) == 0 {
		identity.Roles = []string{"user"}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, password_hash, profile_image, bio, is_online, roles, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		identity.ID, identity.Email, identity.FullName, identity.PasswordHash, identity.ProfileImage,
		identity.Bio, identity.IsOnline, strings.Join(identity.Roles, ","), identity.CreatedAt.Unix())
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n == 0 {
		return "", errors.ErrUserAlreadyExists
	}
	return identity.ID, nil
}

const userColumns = `id, email, full_name, password_hash, profile_image, bio, is_online, roles, created_at`

func (s *Store) GetUser(ctx context.Context, id string) (domain.Identity, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.Identity, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		identity, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

func (s *Store) UpdateProfile(ctx context.Context, id string, profile domain.Profile) (domain.Identity, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, bio = ?, profile_image = ? WHERE id = ?`,
		profile.FullName, profile.Bio, profile.ProfileImage, id)
	if err != nil {
		return domain.Identity{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Identity{}, err
	} else if n == 0 {
		return domain.Identity{}, errors.ErrUserNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Store) SetOnline(ctx context.Context, id string, online bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_online = ? WHERE id = ?`, online, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (s *Store) ResetPresence(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_online = 0 WHERE is_online = 1`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (domain.Message, error) {
	var (
		m         domain.Message
		id        string
		createdAt int64
	)
	err := row.Scan(&id, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.Seen, &createdAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	if m.ID, err = uuid.Parse(id); err != nil {
		return domain.Message{}, err
	}
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	return m, nil
}

func scanUser(row scanner) (domain.Identity, error) {
	var (
		identity  domain.Identity
		roles     string
		createdAt int64
	)
	err := row.Scan(&identity.ID, &identity.Email, &identity.FullName, &identity.PasswordHash,
		&identity.ProfileImage, &identity.Bio, &identity.IsOnline, &roles, &createdAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return domain.Identity{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.Identity{}, err
	}
	if roles != "" {
		identity.Roles = strings.Split(roles, ",")
	}
	identity.CreatedAt = time.Unix(createdAt, 0).UTC()
	return identity, nil
}
