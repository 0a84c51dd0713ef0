package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ibeckermayer/sourcewatch/internal/store"
)

// ParticipantMessages holds one participant's message texts in
// conversation order.
type ParticipantMessages struct {
	Handle   string
	Messages []string
}

// GroupByParticipant buckets message text per author handle, in
// first-appearance order, excluding the agent's own messages.
func GroupByParticipant(messages []store.Memory, agentID string) []ParticipantMessages {
	index := make(map[string]int)
	var groups []ParticipantMessages

	for _, m := range messages {
		if m.UserID == agentID {
			continue
		}
		handle := m.AuthorHandle
		if handle == "" {
			handle = m.UserID
		}
		i, ok := index[handle]
		if !ok {
			i = len(groups)
			index[handle] = i
			groups = append(groups, ParticipantMessages{Handle: handle})
		}
		groups[i].Messages = append(groups[i].Messages, m.Body)
	}
	return groups
}

// BuildSentimentPrompt constructs the per-participant sentiment scoring
// prompt. The response contract is a bare JSON object mapping "@handle"
// keys to scores in [-1.0, 1.0].
func BuildSentimentPrompt(context string, groups []ParticipantMessages) string {
	var sb strings.Builder

	sb.WriteString("Analyze each user's messages in this conversation and provide a sentiment score from -1.0 (very negative) to 1.0 (very positive).\n")
	sb.WriteString("Consider factors like: politeness, engagement, friendliness, and cooperation.\n\n")

	sb.WriteString("Context: ")
	sb.WriteString(context)
	sb.WriteString("\n\n")

	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("Messages from @%s:\n%s\n\n", g.Handle, strings.Join(g.Messages, "\n")))
	}

	sb.WriteString("Return ONLY a JSON object with usernames as keys and scores as values. Example format:\n")
	sb.WriteString("{\n")
	sb.WriteString("    \"@user1\": 0.8,\n")
	sb.WriteString("    \"@user2\": -0.3\n")
	sb.WriteString("}\n")

	return sb.String()
}

// ParseSentimentResponse parses the model's handle->score mapping. Models
// sometimes wrap JSON in code fences or prose, so the parse extracts the
// outermost object before unmarshalling. Anything else is an error the
// caller treats as "skip the update".
func ParseSentimentResponse(response string) (map[string]float64, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %.200s", response)
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("parse sentiment scores: %w", err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("empty sentiment mapping")
	}
	return scores, nil
}
