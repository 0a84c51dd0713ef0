package store

import "database/sql"

// zeroEmbedding is the placeholder stored until an embedding pipeline
// backfills real vectors.
const zeroEmbedding = "[]"

// CreateOrGetMemory inserts the memory if its id is new and returns the
// stored row either way. Because memory ids are derived deterministically
// from (post id, agent id), re-ingesting the same post is a no-op.
func (s *Store) CreateOrGetMemory(m Memory) (*Memory, bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO memories (id, agent_id, room_id, user_id, author_handle,
			body, source, url, in_reply_to, thread_context, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, m.ID, m.AgentID, m.RoomID, m.UserID, m.AuthorHandle,
		m.Body, m.Source, m.URL, nullable(m.InReplyTo), nullable(m.ThreadContext),
		zeroEmbedding, m.CreatedAt.UTC())
	if err != nil {
		return nil, false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	stored, err := s.GetMemoryByID(m.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, inserted > 0, nil
}

// GetMemoryByID returns the memory with the given id, or nil if absent
func (s *Store) GetMemoryByID(id string) (*Memory, error) {
	var m Memory
	var inReplyTo, threadContext sql.NullString
	err := s.db.QueryRow(`
		SELECT id, agent_id, room_id, user_id, author_handle,
			body, source, url, in_reply_to, thread_context, created_at
		FROM memories WHERE id = ?
	`, id).Scan(&m.ID, &m.AgentID, &m.RoomID, &m.UserID, &m.AuthorHandle,
		&m.Body, &m.Source, &m.URL, &inReplyTo, &threadContext, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.InReplyTo = inReplyTo.String
	m.ThreadContext = threadContext.String
	return &m, nil
}

// AttachThreadContext sets the rendered thread on an already-recorded
// memory. The walk records a post before its full chain is known, so the
// attachment is a second write rather than part of the insert.
func (s *Store) AttachThreadContext(memoryID, context string) error {
	_, err := s.db.Exec(`
		UPDATE memories SET thread_context = ? WHERE id = ?
	`, context, memoryID)
	return err
}

// CountMemories returns the number of stored memories for an agent
func (s *Store) CountMemories(agentID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE agent_id = ?`, agentID).Scan(&n)
	return n, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
