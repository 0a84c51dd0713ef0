package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GetConversation returns the conversation with the given id, or nil if absent
func (s *Store) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	var closedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, root_post_id, agent_id, status, context,
			started_at, last_message_at, closed_at
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.RootPostID, &c.AgentID, &c.Status, &c.Context,
		&c.StartedAt, &c.LastMessageAt, &closedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}
	return &c, nil
}

// StoreConversation creates a new conversation with its initial member and
// participant sets. started_at is fixed here and never touched by merges.
//
// All timestamps are normalized to UTC before binding: the driver encodes
// time.Time as zoned text, and the MAX() comparison in MergeConversation is
// only chronological when every stored value carries the same offset.
func (s *Store) StoreConversation(c Conversation, memberIDs, participantIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, root_post_id, agent_id, status, context,
			started_at, last_message_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.RootPostID, c.AgentID, StatusActive, c.Context,
		c.StartedAt.UTC(), c.LastMessageAt.UTC())
	if err != nil {
		return fmt.Errorf("insert conversation %s: %w", c.ID, err)
	}

	if err := addMembers(tx, c.ID, memberIDs); err != nil {
		return err
	}
	if err := addParticipants(tx, c.ID, participantIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// MergeConversation folds a freshly built thread into an existing
// conversation: member and participant sets are unioned, last_message_at
// only moves forward, the context blob is replaced with the new rendering,
// and status and started_at are left alone.
func (s *Store) MergeConversation(id string, memberIDs, participantIDs []string, lastMessageAt time.Time, context string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE conversations
		SET last_message_at = MAX(last_message_at, ?),
			context = ?
		WHERE id = ?
	`, lastMessageAt.UTC(), context, id)
	if err != nil {
		return fmt.Errorf("merge conversation %s: %w", id, err)
	}

	if err := addMembers(tx, id, memberIDs); err != nil {
		return err
	}
	if err := addParticipants(tx, id, participantIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// addMembers appends new member ids after the current highest position.
// Already-present members are ignored, so positions stay stable across
// repeated builds of the same thread.
func addMembers(tx *sql.Tx, conversationID string, memberIDs []string) error {
	var next int
	err := tx.QueryRow(`
		SELECT COALESCE(MAX(position), -1) + 1
		FROM conversation_messages WHERE conversation_id = ?
	`, conversationID).Scan(&next)
	if err != nil {
		return err
	}

	for _, memberID := range memberIDs {
		_, err := tx.Exec(`
			INSERT INTO conversation_messages (conversation_id, memory_id, position)
			VALUES (?, ?, ?)
			ON CONFLICT(conversation_id, memory_id) DO NOTHING
		`, conversationID, memberID, next)
		if err != nil {
			return err
		}
		next++
	}
	return nil
}

func addParticipants(tx *sql.Tx, conversationID string, participantIDs []string) error {
	for _, userID := range participantIDs {
		_, err := tx.Exec(`
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES (?, ?)
			ON CONFLICT(conversation_id, user_id) DO NOTHING
		`, conversationID, userID)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetConversationMessages returns the conversation's member memories in
// stored order
func (s *Store) GetConversationMessages(conversationID string) ([]Memory, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.agent_id, m.room_id, m.user_id, m.author_handle,
			m.body, m.source, m.url, m.in_reply_to, m.thread_context, m.created_at
		FROM conversation_messages cm
		JOIN memories m ON m.id = cm.memory_id
		WHERE cm.conversation_id = ?
		ORDER BY cm.position
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMemories(rows)
}

// GetConversationParticipants returns the conversation's participant
// identities
func (s *Store) GetConversationParticipants(conversationID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ? ORDER BY user_id
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListActiveConversations returns all conversations still open for an agent
func (s *Store) ListActiveConversations(agentID string) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, root_post_id, agent_id, status, context,
			started_at, last_message_at, closed_at
		FROM conversations
		WHERE agent_id = ? AND status = ?
		ORDER BY last_message_at
	`, agentID, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var closedAt sql.NullTime
		err := rows.Scan(&c.ID, &c.RootPostID, &c.AgentID, &c.Status, &c.Context,
			&c.StartedAt, &c.LastMessageAt, &closedAt)
		if err != nil {
			return nil, err
		}
		if closedAt.Valid {
			c.ClosedAt = &closedAt.Time
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// CloseConversation transitions an ACTIVE conversation to CLOSED. Returns
// false when the conversation was already closed (or doesn't exist), making
// repeated lifecycle sweeps no-ops.
func (s *Store) CloseConversation(id string, closedAt time.Time) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE conversations
		SET status = ?, closed_at = ?
		WHERE id = ? AND status = ?
	`, StatusClosed, closedAt.UTC(), id, StatusActive)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateUserRapport upserts the sentiment score for a user under an agent
func (s *Store) UpdateUserRapport(userID, agentID string, sentimentScore float64) error {
	_, err := s.db.Exec(`
		INSERT INTO user_rapport (user_id, agent_id, sentiment_score, interactions, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(user_id, agent_id) DO UPDATE SET
			sentiment_score = excluded.sentiment_score,
			interactions = interactions + 1,
			updated_at = excluded.updated_at
	`, userID, agentID, sentimentScore, time.Now().UTC())
	return err
}

// GetUserRapport returns the rapport row for a user under an agent, or nil
func (s *Store) GetUserRapport(userID, agentID string) (*Rapport, error) {
	var r Rapport
	err := s.db.QueryRow(`
		SELECT user_id, agent_id, sentiment_score, interactions, updated_at
		FROM user_rapport WHERE user_id = ? AND agent_id = ?
	`, userID, agentID).Scan(&r.UserID, &r.AgentID, &r.SentimentScore, &r.Interactions, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		var m Memory
		var inReplyTo, threadContext sql.NullString
		err := rows.Scan(&m.ID, &m.AgentID, &m.RoomID, &m.UserID, &m.AuthorHandle,
			&m.Body, &m.Source, &m.URL, &inReplyTo, &threadContext, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		m.InReplyTo = inReplyTo.String
		m.ThreadContext = threadContext.String
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
