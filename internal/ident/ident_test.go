package ident

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	a := ForPost("123456", "agent-1")
	b := ForPost("123456", "agent-1")
	assert.Equal(t, a, b)

	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestDeriveDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t, ForPost("123456", "agent-1"), ForPost("123456", "agent-2"))
	assert.NotEqual(t, ForPost("123456", "agent-1"), ForPost("123457", "agent-1"))
	assert.NotEqual(t, ForUser("42"), ForPost("42", ""))
	assert.NotEqual(t, ForRoom("42", "agent-1"), ForPost("42", "agent-1"))
}
