// Package analyzer scores closed conversations for per-participant
// sentiment and updates rapport state.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ibeckermayer/sourcewatch/internal/analyzer/providers"
	"github.com/ibeckermayer/sourcewatch/internal/config"
	"github.com/ibeckermayer/sourcewatch/internal/store"
)

// Provider defines the interface for LLM providers
type Provider interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// Analyzer runs the sentiment analysis for closed conversations.
type Analyzer struct {
	provider    Provider
	store       *store.Store
	agentID     string
	temperature float64
	maxTokens   int
	log         *slog.Logger
}

// New creates an analyzer with the appropriate provider based on config
func New(analysisConfig config.AnalysisConfig, st *store.Store, agentID string, log *slog.Logger) (*Analyzer, error) {
	var provider Provider

	switch analysisConfig.LLMProvider {
	case config.ProviderAnthropic:
		provider = providers.NewAnthropicProvider(analysisConfig.APIKey, analysisConfig.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", analysisConfig.LLMProvider)
	}

	return NewWithProvider(provider, st, agentID, analysisConfig.Temperature, analysisConfig.MaxTokens, log), nil
}

// NewWithProvider creates an analyzer around an explicit provider.
func NewWithProvider(provider Provider, st *store.Store, agentID string, temperature float64, maxTokens int, log *slog.Logger) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Analyzer{
		provider:    provider,
		store:       st,
		agentID:     agentID,
		temperature: temperature,
		maxTokens:   maxTokens,
		log:         log.With("component", "analyzer"),
	}
}

// AnalyzeConversation scores each participant's messages in the
// conversation and upserts their rapport under the owning agent. A
// malformed model response aborts the rapport update without error: the
// conversation stays closed, rapport just goes unscored.
func (a *Analyzer) AnalyzeConversation(ctx context.Context, conversationID string) error {
	conv, err := a.store.GetConversation(conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		a.log.Warn("conversation missing, skipping analysis", "conversation", conversationID)
		return nil
	}

	messages, err := a.store.GetConversationMessages(conversationID)
	if err != nil {
		return fmt.Errorf("load conversation messages: %w", err)
	}

	groups := GroupByParticipant(messages, a.agentID)
	if len(groups) == 0 {
		a.log.Debug("no non-agent participants to score", "conversation", conversationID)
		return nil
	}

	prompt := BuildSentimentPrompt(conv.Context, groups)
	response, err := a.provider.Generate(ctx, prompt, a.temperature, a.maxTokens)
	if err != nil {
		return fmt.Errorf("sentiment generation: %w", err)
	}

	scores, err := ParseSentimentResponse(response)
	if err != nil {
		a.log.Error("unparseable sentiment response, skipping rapport update",
			"conversation", conversationID, "error", err)
		return nil
	}

	for handle, score := range scores {
		userID, ok := resolveParticipant(messages, handle)
		if !ok {
			// Model hallucinated a handle; nothing to update.
			continue
		}
		if err := a.store.UpdateUserRapport(userID, a.agentID, clamp(score)); err != nil {
			a.log.Error("rapport update failed", "user", userID, "error", err)
			continue
		}
		a.log.Info("rapport updated", "handle", handle, "score", score)
	}
	return nil
}

// resolveParticipant maps a "@handle" score key back to the identity of the
// first conversation message authored by that handle.
func resolveParticipant(messages []store.Memory, handle string) (string, bool) {
	want := strings.TrimPrefix(handle, "@")
	for _, m := range messages {
		if m.AuthorHandle == want {
			return m.UserID, true
		}
	}
	return "", false
}

func clamp(score float64) float64 {
	switch {
	case score > 1.0:
		return 1.0
	case score < -1.0:
		return -1.0
	default:
		return score
	}
}
