// Package social is the upstream transport boundary: searching posts by
// query and fetching single posts by id.
package social

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/sourcewatch/internal/types"
)

// Client is the abstract upstream API surface the pipeline consumes.
type Client interface {
	// SearchPosts returns up to limit posts matching the query, newest
	// first.
	SearchPosts(ctx context.Context, query string, limit int) ([]types.Post, error)

	// GetPost fetches a single post by id. A missing post is (nil, nil),
	// not an error.
	GetPost(ctx context.Context, id string) (*types.Post, error)
}

// PostsQuery returns the search query for an account's own posts.
func PostsQuery(handle string) string {
	return fmt.Sprintf("from:%s", handle)
}

// RepliesQuery returns the search query for an account's replies.
func RepliesQuery(handle string) string {
	return fmt.Sprintf("from:%s is:reply", handle)
}
