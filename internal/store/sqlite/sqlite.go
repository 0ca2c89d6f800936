package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cospace/cospace-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS content_versions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	content_id  TEXT NOT NULL,
	room_id     TEXT NOT NULL,
	author_id   TEXT NOT NULL,
	author_name TEXT NOT NULL,
	payload     BLOB NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_content_versions_content
	ON content_versions(content_id, id DESC);

CREATE TABLE IF NOT EXISTS room_grants (
	room_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	granted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id)
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup opens the database and runs a setup function before use.
// Tests pass ":memory:" with their own seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== VersionStore implementation ====

// AppendVersion persists one edit payload and assigns its ID.
func (s *SQLiteStore) AppendVersion(ctx context.Context, v *store.ContentVersion) error {
	query := `
		INSERT INTO content_versions (content_id, room_id, author_id, author_name, payload)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, v.ContentID, v.RoomID, v.AuthorID, v.AuthorName, v.Payload)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	v.ID = id
	return nil
}

// ListVersions returns the newest versions of a content, newest first.
func (s *SQLiteStore) ListVersions(ctx context.Context, contentID string, limit int) ([]*store.ContentVersion, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, content_id, room_id, author_id, author_name, payload, created_at
		FROM content_versions
		WHERE content_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, contentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []*store.ContentVersion
	for rows.Next() {
		v := &store.ContentVersion{}
		if err := rows.Scan(&v.ID, &v.ContentID, &v.RoomID, &v.AuthorID, &v.AuthorName, &v.Payload, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ==== AccessStore implementation ====

// GetRoomRole returns the user's role in a room, or "" with no error
// when the user has no grant.
func (s *SQLiteStore) GetRoomRole(ctx context.Context, userID, roomID string) (string, error) {
	query := `SELECT role FROM room_grants WHERE room_id = ? AND user_id = ?`

	var role string
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query room role: %w", err)
	}
	return role, nil
}

// UpsertRoomGrant records or updates a user's room grant.
func (s *SQLiteStore) UpsertRoomGrant(ctx context.Context, g *store.RoomGrant) error {
	query := `
		INSERT INTO room_grants (room_id, user_id, role)
		VALUES (?, ?, ?)
		ON CONFLICT(room_id, user_id) DO UPDATE SET role = excluded.role
	`
	if _, err := s.db.ExecContext(ctx, query, g.RoomID, g.UserID, g.Role); err != nil {
		return fmt.Errorf("upsert room grant: %w", err)
	}
	return nil
}
