package lifecycle

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/sourcewatch/internal/store"
)

const testAgentID = "agent-uuid"

type recordingAnalyzer struct {
	analyzed []string
}

func (r *recordingAnalyzer) AnalyzeConversation(ctx context.Context, conversationID string) error {
	r.analyzed = append(r.analyzed, conversationID)
	return nil
}

func newTestMonitor(t *testing.T) (*Monitor, *store.Store, *recordingAnalyzer) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "lifecycle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	an := &recordingAnalyzer{}
	m := NewMonitor(st, an, testAgentID, 45*time.Minute, slog.New(slog.DiscardHandler))
	return m, st, an
}

func storeConversation(t *testing.T, st *store.Store, id string, lastMessageAt time.Time) {
	t.Helper()
	require.NoError(t, st.StoreConversation(store.Conversation{
		ID: id, RootPostID: "root-" + id, AgentID: testAgentID,
		StartedAt: lastMessageAt.Add(-time.Hour), LastMessageAt: lastMessageAt,
	}, nil, nil))
}

func TestSweepClosesInactiveConversations(t *testing.T) {
	m, st, an := newTestMonitor(t)
	now := time.Now()

	storeConversation(t, st, "dormant", now.Add(-46*time.Minute))
	storeConversation(t, st, "lively", now.Add(-10*time.Minute))

	require.NoError(t, m.Sweep(context.Background()))

	dormant, err := st.GetConversation("dormant")
	require.NoError(t, err)
	assert.Equal(t, store.StatusClosed, dormant.Status)
	require.NotNil(t, dormant.ClosedAt)

	lively, err := st.GetConversation("lively")
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, lively.Status)
	assert.Nil(t, lively.ClosedAt)

	assert.Equal(t, []string{"dormant"}, an.analyzed)
}

func TestSweepIsIdempotent(t *testing.T) {
	m, st, an := newTestMonitor(t)
	storeConversation(t, st, "dormant", time.Now().Add(-2*time.Hour))

	ctx := context.Background()
	require.NoError(t, m.Sweep(ctx))
	require.NoError(t, m.Sweep(ctx))

	assert.Equal(t, []string{"dormant"}, an.analyzed, "a closed conversation is never re-analyzed")
}

func TestSweepAtExactThresholdDoesNotClose(t *testing.T) {
	m, st, an := newTestMonitor(t)
	fixed := time.Now()
	m.now = func() time.Time { return fixed }

	storeConversation(t, st, "edge", fixed.Add(-45*time.Minute))

	require.NoError(t, m.Sweep(context.Background()))

	c, err := st.GetConversation("edge")
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, c.Status, "closure requires strictly more than the threshold")
	assert.Empty(t, an.analyzed)
}
