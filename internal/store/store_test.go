package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWatermarkRoundTrip(t *testing.T) {
	s := newTestStore(t)

	w, err := s.GetWatermark("alice")
	require.NoError(t, err)
	assert.Nil(t, w, "missing watermark reads as nil")

	checked := time.Now().Truncate(time.Second)
	require.NoError(t, s.SaveWatermark(Watermark{Handle: "alice", LastSeenID: "100", LastCheckedAt: checked}))

	w, err = s.GetWatermark("alice")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, "100", w.LastSeenID)

	// Overwrite on a later cycle
	require.NoError(t, s.SaveWatermark(Watermark{Handle: "alice", LastSeenID: "250", LastCheckedAt: checked.Add(time.Minute)}))
	w, err = s.GetWatermark("alice")
	require.NoError(t, err)
	assert.Equal(t, "250", w.LastSeenID)
}

func TestCreateOrGetMemoryIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	m := Memory{
		ID:           "mem-1",
		AgentID:      "agent-1",
		RoomID:       "room-1",
		UserID:       "user-1",
		AuthorHandle: "alice",
		Body:         "hello world",
		Source:       "twitter",
		URL:          "https://example.com/1",
		CreatedAt:    time.Now().Truncate(time.Second),
	}

	first, created, err := s.CreateOrGetMemory(m)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, first)

	// Re-ingesting must neither duplicate nor overwrite
	m.Body = "mutated body that must not win"
	second, created, err := s.CreateOrGetMemory(m)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "hello world", second.Body)

	n, err := s.CountMemories("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryParentLink(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.CreateOrGetMemory(Memory{
		ID: "child", AgentID: "a", RoomID: "r", UserID: "u",
		Body: "reply", Source: "twitter", InReplyTo: "parent",
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	got, err := s.GetMemoryByID("child")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "parent", got.InReplyTo)

	missing, err := s.GetMemoryByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func storeThreeMemories(t *testing.T, s *Store) {
	t.Helper()
	for i, id := range []string{"m1", "m2", "m3"} {
		_, _, err := s.CreateOrGetMemory(Memory{
			ID: id, AgentID: "agent-1", RoomID: "room-1", UserID: "u" + id,
			AuthorHandle: "author" + id, Body: "body " + id, Source: "twitter",
			CreatedAt: time.Unix(int64(1700000000+i*60), 0),
		})
		require.NoError(t, err)
	}
}

func TestConversationMergeSemantics(t *testing.T) {
	s := newTestStore(t)
	storeThreeMemories(t, s)

	started := time.Unix(1700000000, 0)
	last := time.Unix(1700000060, 0)

	require.NoError(t, s.StoreConversation(Conversation{
		ID: "conv-1", RootPostID: "root", AgentID: "agent-1",
		Context: "@a: one\n@b: two", StartedAt: started, LastMessageAt: last,
	}, []string{"m1", "m2"}, []string{"p1", "p2"}))

	// Merge an overlapping build: one new member, duplicate members and
	// participants, newer last message.
	newer := time.Unix(1700000120, 0)
	require.NoError(t, s.MergeConversation("conv-1",
		[]string{"m1", "m2", "m3"}, []string{"p2", "p3"}, newer, "@a: one\n@b: two\n@c: three"))

	c, err := s.GetConversation("conv-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, StatusActive, c.Status)
	assert.True(t, c.StartedAt.Equal(started), "started_at never changes on merge")
	assert.True(t, c.LastMessageAt.Equal(newer))

	msgs, err := s.GetConversationMessages("conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 3, "member set unions without duplicates")
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, "m3", msgs[2].ID)

	participants, err := s.GetConversationParticipants("conv-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, participants)

	// A merge carrying an older last_message_at must not move time backward.
	require.NoError(t, s.MergeConversation("conv-1",
		[]string{"m1"}, []string{"p1"}, started, "stale render"))
	c, err = s.GetConversation("conv-1")
	require.NoError(t, err)
	assert.True(t, c.LastMessageAt.Equal(newer), "last_message_at is monotonic")
}

func TestConversationMergeAcrossZoneOffsets(t *testing.T) {
	s := newTestStore(t)

	// A DST fall-back repeats the wall clock: 02:30 +0200 is an earlier
	// instant than 02:30 +0100. Monotonicity must hold on instants, not on
	// the zoned text the driver writes.
	summer := time.FixedZone("CEST", 2*3600)
	winter := time.FixedZone("CET", 1*3600)
	beforeShift := time.Date(2026, 10, 25, 2, 30, 0, 0, summer) // 00:30 UTC
	afterShift := time.Date(2026, 10, 25, 2, 30, 0, 0, winter)  // 01:30 UTC

	require.NoError(t, s.StoreConversation(Conversation{
		ID: "conv-1", RootPostID: "root", AgentID: "agent-1",
		StartedAt: beforeShift, LastMessageAt: afterShift,
	}, nil, nil))

	require.NoError(t, s.MergeConversation("conv-1", nil, nil, beforeShift, "stale render"))
	c, err := s.GetConversation("conv-1")
	require.NoError(t, err)
	assert.True(t, c.LastMessageAt.Equal(afterShift),
		"older instant with larger offset must not win")

	// A genuinely newer instant still advances regardless of its zone.
	newer := afterShift.Add(10 * time.Minute).In(summer)
	require.NoError(t, s.MergeConversation("conv-1", nil, nil, newer, "fresh render"))
	c, err = s.GetConversation("conv-1")
	require.NoError(t, err)
	assert.True(t, c.LastMessageAt.Equal(newer))
}

func TestCloseConversationIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.StoreConversation(Conversation{
		ID: "conv-1", RootPostID: "root", AgentID: "agent-1",
		StartedAt: now.Add(-time.Hour), LastMessageAt: now.Add(-time.Hour),
	}, nil, nil))

	closed, err := s.CloseConversation("conv-1", now)
	require.NoError(t, err)
	assert.True(t, closed)

	c, err := s.GetConversation("conv-1")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, c.Status)
	require.NotNil(t, c.ClosedAt)

	// Second close is a no-op
	closed, err = s.CloseConversation("conv-1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, closed)

	closed, err = s.CloseConversation("missing", now)
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestListActiveConversations(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.StoreConversation(Conversation{
		ID: "open", RootPostID: "r1", AgentID: "agent-1",
		StartedAt: now, LastMessageAt: now,
	}, nil, nil))
	require.NoError(t, s.StoreConversation(Conversation{
		ID: "done", RootPostID: "r2", AgentID: "agent-1",
		StartedAt: now, LastMessageAt: now,
	}, nil, nil))
	_, err := s.CloseConversation("done", now)
	require.NoError(t, err)

	convs, err := s.ListActiveConversations("agent-1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "open", convs[0].ID)
}

func TestUpdateUserRapport(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpdateUserRapport("user-1", "agent-1", 0.8))
	r, err := s.GetUserRapport("user-1", "agent-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 0.8, r.SentimentScore, 1e-9)
	assert.Equal(t, 1, r.Interactions)

	require.NoError(t, s.UpdateUserRapport("user-1", "agent-1", -0.3))
	r, err = s.GetUserRapport("user-1", "agent-1")
	require.NoError(t, err)
	assert.InDelta(t, -0.3, r.SentimentScore, 1e-9)
	assert.Equal(t, 2, r.Interactions)

	missing, err := s.GetUserRapport("nobody", "agent-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
