// Package lifecycle closes out conversations that have gone dormant.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ibeckermayer/sourcewatch/internal/store"
)

// DefaultInactivityThreshold is how long a conversation may sit without a
// new message before it is closed.
const DefaultInactivityThreshold = 45 * time.Minute

// Analyzer is invoked once per conversation as it transitions to CLOSED.
type Analyzer interface {
	AnalyzeConversation(ctx context.Context, conversationID string) error
}

// Monitor sweeps open conversations and closes the inactive ones.
type Monitor struct {
	store     *store.Store
	analyzer  Analyzer
	agentID   string
	threshold time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewMonitor creates a Monitor. threshold <= 0 selects the default.
func NewMonitor(st *store.Store, analyzer Analyzer, agentID string, threshold time.Duration, log *slog.Logger) *Monitor {
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}
	return &Monitor{
		store:     st,
		analyzer:  analyzer,
		agentID:   agentID,
		threshold: threshold,
		now:       time.Now,
		log:       log.With("component", "lifecycle"),
	}
}

// Sweep evaluates every ACTIVE conversation once. Conversations inactive
// past the threshold are closed and handed to the analyzer. Sweeping is
// idempotent: closed conversations are never revisited.
func (m *Monitor) Sweep(ctx context.Context) error {
	convs, err := m.store.ListActiveConversations(m.agentID)
	if err != nil {
		return fmt.Errorf("list active conversations: %w", err)
	}

	now := m.now()
	for _, conv := range convs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if now.Sub(conv.LastMessageAt) <= m.threshold {
			continue
		}

		closed, err := m.store.CloseConversation(conv.ID, now)
		if err != nil {
			m.log.Error("close failed", "conversation", conv.ID, "error", err)
			continue
		}
		if !closed {
			// Lost a race with a previous sweep; nothing to do.
			continue
		}

		m.log.Info("conversation closed",
			"conversation", conv.ID,
			"inactive", now.Sub(conv.LastMessageAt).Round(time.Second))

		if err := m.analyzer.AnalyzeConversation(ctx, conv.ID); err != nil {
			// The conversation stays closed; rapport just goes unscored.
			m.log.Error("analysis failed", "conversation", conv.ID, "error", err)
		}
	}
	return nil
}
