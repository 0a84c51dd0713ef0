package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watermarks (
		handle TEXT PRIMARY KEY,
		last_seen_id TEXT NOT NULL,
		last_checked_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		author_handle TEXT,
		body TEXT NOT NULL,
		source TEXT NOT NULL,
		url TEXT,
		in_reply_to TEXT,
		thread_context TEXT,
		embedding TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		root_post_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		context TEXT,
		started_at DATETIME NOT NULL,
		last_message_at DATETIME NOT NULL,
		closed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS conversation_messages (
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		memory_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, memory_id)
	);

	CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		user_id TEXT NOT NULL,
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS user_rapport (
		user_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		sentiment_score REAL NOT NULL,
		interactions INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, agent_id)
	);

	CREATE INDEX IF NOT EXISTS idx_memories_room ON memories(room_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_status ON conversations(status);
	CREATE INDEX IF NOT EXISTS idx_conv_messages_order ON conversation_messages(conversation_id, position);
	`

	_, err := s.db.Exec(schema)
	return err
}
