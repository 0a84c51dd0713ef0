// Package ident derives stable identifiers for records, rooms, and users.
//
// Every durable key in the system is a UUID deterministically derived from
// the upstream identifiers it represents, so re-ingesting the same post for
// the same agent always lands on the same row.
package ident

import (
	"strings"

	"github.com/google/uuid"
)

// namespace scopes all derived ids so they can't collide with v4 uuids
// minted elsewhere in the process.
var namespace = uuid.MustParse("9f2c1c1e-7a54-4d2a-b0f5-3a8e5d6c4b21")

// Derive returns the UUID for the given parts, joined with "-".
func Derive(parts ...string) string {
	return uuid.NewSHA1(namespace, []byte(strings.Join(parts, "-"))).String()
}

// ForPost returns the memory id for a post ingested on behalf of an agent.
func ForPost(postID, agentID string) string {
	return Derive(postID, agentID)
}

// ForRoom returns the room id for a conversation owned by an agent.
func ForRoom(conversationID, agentID string) string {
	return Derive("room", conversationID, agentID)
}

// ForUser returns the identity for a remote author. The agent's own posts
// are mapped to its agent id by callers, never through here.
func ForUser(userID string) string {
	return Derive("user", userID)
}
