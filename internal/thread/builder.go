// Package thread reconstructs reply chains from the upstream API.
package thread

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ibeckermayer/sourcewatch/internal/ident"
	"github.com/ibeckermayer/sourcewatch/internal/social"
	"github.com/ibeckermayer/sourcewatch/internal/store"
	"github.com/ibeckermayer/sourcewatch/internal/types"
)

// DefaultMaxDepth bounds the upward walk. Upstream data is untrusted, so
// the cap holds even if parent pointers form a cycle the visited set misses.
const DefaultMaxDepth = 10

// Source tag written on every memory this builder records.
const Source = "twitter"

// Builder walks a reply post's ancestor chain, durably recording every
// visited post and creating or merging the owning conversation.
type Builder struct {
	client     social.Client
	store      *store.Store
	agentID    string // the agent's record-store identity
	selfUserID string // the agent's own upstream account id
	maxDepth   int
	log        *slog.Logger
}

// NewBuilder creates a Builder. maxDepth <= 0 selects DefaultMaxDepth.
func NewBuilder(client social.Client, st *store.Store, agentID, selfUserID string, maxDepth int, log *slog.Logger) *Builder {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Builder{
		client:     client,
		store:      st,
		agentID:    agentID,
		selfUserID: selfUserID,
		maxDepth:   maxDepth,
		log:        log.With("component", "thread"),
	}
}

// Build reconstructs the ancestor chain of post, oldest first, and persists
// the result: a memory per visited post and a created-or-merged
// conversation keyed by the derived root id. Upstream fetch failures end
// the walk silently (partial threads are fine); only storage failures
// propagate.
func (b *Builder) Build(ctx context.Context, post types.Post) ([]types.Post, error) {
	var chain []types.Post
	visited := make(map[string]bool)

	current := &post
	for depth := 0; current != nil && depth < b.maxDepth; depth++ {
		b.log.Debug("processing post", "id", current.ID, "in_reply_to", current.InReplyToStatusID, "depth", depth)

		if err := b.recordPost(*current); err != nil {
			return nil, err
		}

		if visited[current.ID] {
			b.log.Debug("already visited, stopping", "id", current.ID)
			break
		}
		visited[current.ID] = true
		chain = append([]types.Post{*current}, chain...)

		if current.InReplyToStatusID == "" {
			// Root reached
			break
		}

		parent, err := b.client.GetPost(ctx, current.InReplyToStatusID)
		if err != nil {
			b.log.Warn("parent fetch failed, keeping partial thread", "id", current.InReplyToStatusID, "error", err)
			break
		}
		if parent == nil {
			b.log.Debug("parent missing upstream", "id", current.InReplyToStatusID)
			break
		}
		current = parent
	}

	if len(chain) == 0 {
		return chain, nil
	}

	if err := b.saveConversation(post, chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// recordPost upserts the memory for one visited post. Already-recorded
// posts are left untouched but the walk continues past them so merges can
// still pick up new ancestors.
func (b *Builder) recordPost(p types.Post) error {
	id := ident.ForPost(p.ID, b.agentID)

	existing, err := b.store.GetMemoryByID(id)
	if err != nil {
		return fmt.Errorf("look up memory for post %s: %w", p.ID, err)
	}
	if existing != nil {
		return nil
	}

	m := store.Memory{
		ID:           id,
		AgentID:      b.agentID,
		RoomID:       ident.ForRoom(p.RootConversationID(), b.agentID),
		UserID:       b.identityFor(p.UserID),
		AuthorHandle: p.Username,
		Body:         p.Text,
		Source:       Source,
		URL:          p.PermanentURL,
		CreatedAt:    p.CreatedAt(),
	}
	if p.InReplyToStatusID != "" {
		m.InReplyTo = ident.ForPost(p.InReplyToStatusID, b.agentID)
	}

	if _, _, err := b.store.CreateOrGetMemory(m); err != nil {
		return fmt.Errorf("record post %s: %w", p.ID, err)
	}
	return nil
}

func (b *Builder) saveConversation(origin types.Post, chain []types.Post) error {
	conversationID := ident.ForRoom(origin.RootConversationID(), b.agentID)

	memberIDs := make([]string, len(chain))
	for i, p := range chain {
		memberIDs[i] = ident.ForPost(p.ID, b.agentID)
	}

	var participantIDs []string
	seen := make(map[string]bool)
	for _, p := range chain {
		id := b.identityFor(p.UserID)
		if seen[id] {
			continue
		}
		seen[id] = true
		participantIDs = append(participantIDs, id)
	}

	rendered := FormatConversation(chain)
	started, last := timeBounds(chain)

	// The origin post carries the full chain rendering; its memory was
	// recorded during the walk, before the chain was complete.
	if err := b.store.AttachThreadContext(ident.ForPost(origin.ID, b.agentID), rendered); err != nil {
		return fmt.Errorf("attach thread context for post %s: %w", origin.ID, err)
	}

	existing, err := b.store.GetConversation(conversationID)
	if err != nil {
		return fmt.Errorf("look up conversation %s: %w", conversationID, err)
	}

	if existing == nil {
		b.log.Info("creating conversation", "id", conversationID, "messages", len(memberIDs), "participants", len(participantIDs))
		return b.store.StoreConversation(store.Conversation{
			ID:            conversationID,
			RootPostID:    chain[0].ID,
			AgentID:       b.agentID,
			Context:       rendered,
			StartedAt:     started,
			LastMessageAt: last,
		}, memberIDs, participantIDs)
	}

	b.log.Info("merging conversation", "id", conversationID, "new_messages", len(memberIDs))
	return b.store.MergeConversation(conversationID, memberIDs, participantIDs, last, rendered)
}

// identityFor maps an upstream author id to a record-store identity. The
// agent's own posts map to the agent id itself.
func (b *Builder) identityFor(userID string) string {
	if userID == b.selfUserID {
		return b.agentID
	}
	return ident.ForUser(userID)
}

// FormatConversation renders a chain as one "@handle: text" line per post,
// chronological order.
func FormatConversation(chain []types.Post) string {
	lines := make([]string, len(chain))
	for i, p := range chain {
		lines[i] = fmt.Sprintf("@%s: %s", p.Username, p.Text)
	}
	return strings.Join(lines, "\n")
}

func timeBounds(chain []types.Post) (earliest, latest time.Time) {
	earliest = chain[0].CreatedAt()
	latest = earliest
	for _, p := range chain[1:] {
		t := p.CreatedAt()
		if t.Before(earliest) {
			earliest = t
		}
		if t.After(latest) {
			latest = t
		}
	}
	return earliest, latest
}
