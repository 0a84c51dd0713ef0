package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHandles(t *testing.T) {
	tests := []struct {
		name     string
		accounts string
		want     []string
	}{
		{"empty", "", nil},
		{"single", "alice", []string{"alice"}},
		{"strips at prefix", "@alice,@bob", []string{"alice", "bob"}},
		{"trims whitespace", " alice , bob ", []string{"alice", "bob"}},
		{"drops blanks", "alice,,  ,bob", []string{"alice", "bob"}},
		{"dedupes preserving order", "alice,bob,@alice,bob", []string{"alice", "bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHandles(tt.accounts))
		})
	}
}

func TestDefaultMonitorSettings(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60, cfg.Monitor.PollIntervalSeconds)
	assert.Equal(t, 10, cfg.Monitor.MaxThreadDepth)
	assert.Equal(t, 120, cfg.Monitor.RecencyWindowMin)
	assert.Equal(t, 45, cfg.Monitor.InactivityMin)
	assert.Empty(t, cfg.Handles())
}
