package store

import "time"

// Conversation status values. Transitions are one-way: ACTIVE -> CLOSED.
const (
	StatusActive = "ACTIVE"
	StatusClosed = "CLOSED"
)

// Watermark tracks the highest-seen post id for a monitored account
type Watermark struct {
	Handle        string    `json:"handle"`
	LastSeenID    string    `json:"last_seen_id"`
	LastCheckedAt time.Time `json:"last_checked_at"`
}

// Memory is a durable record of one ingested post, keyed by the
// deterministic id derived from (post id, agent id)
type Memory struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	RoomID       string    `json:"room_id"`
	UserID       string    `json:"user_id"`
	AuthorHandle string    `json:"author_handle"`
	Body         string    `json:"body"`
	Source       string    `json:"source"`
	URL          string    `json:"url"`
	InReplyTo    string    `json:"in_reply_to,omitempty"`
	// ThreadContext is the rendered ancestor chain, attached after the
	// thread walk completes. Empty for posts ingested without a walk.
	ThreadContext string    `json:"thread_context,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Conversation is the persisted aggregate of a reply thread. Member and
// participant sets live in side tables and only ever grow.
type Conversation struct {
	ID            string     `json:"id"`
	RootPostID    string     `json:"root_post_id"`
	AgentID       string     `json:"agent_id"`
	Status        string     `json:"status"`
	Context       string     `json:"context"`
	StartedAt     time.Time  `json:"started_at"`
	LastMessageAt time.Time  `json:"last_message_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

// Rapport is the per-user, per-agent sentiment state updated when a
// conversation closes
type Rapport struct {
	UserID         string    `json:"user_id"`
	AgentID        string    `json:"agent_id"`
	SentimentScore float64   `json:"sentiment_score"`
	Interactions   int       `json:"interactions"`
	UpdatedAt      time.Time `json:"updated_at"`
}
