package types

import (
	"strconv"
	"time"
)

// Post represents a post fetched from the upstream social API
type Post struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	Text              string `json:"text"`
	Timestamp         int64  `json:"timestamp"` // epoch seconds
	ConversationID    string `json:"conversation_id"`
	InReplyToStatusID string `json:"in_reply_to_status_id,omitempty"`
	PermanentURL      string `json:"permanent_url"`
	IsReply           bool   `json:"is_reply"`
	IsRetweet         bool   `json:"is_retweet"`
}

// Valid reports whether the post carries the fields ingestion requires.
// Posts missing an id, text, or timestamp are malformed and get dropped.
func (p Post) Valid() bool {
	return p.ID != "" && p.Text != "" && p.Timestamp > 0
}

// CreatedAt returns the post's creation time.
func (p Post) CreatedAt() time.Time {
	return time.Unix(p.Timestamp, 0)
}

// RootConversationID returns the id of the conversation the post belongs to,
// falling back to the post's own id when the upstream omits it (a post that
// starts a thread is its own conversation root).
func (p Post) RootConversationID() string {
	if p.ConversationID != "" {
		return p.ConversationID
	}
	return p.ID
}

// NumericID parses a post identifier as an unsigned integer. Upstream ids are
// monotonically increasing integers serialized as strings, so ordering
// comparisons must be numeric rather than lexicographic.
func NumericID(id string) (uint64, error) {
	return strconv.ParseUint(id, 10, 64)
}
