package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ibeckermayer/sourcewatch/internal/queue"
	"github.com/ibeckermayer/sourcewatch/internal/types"
)

// HTTPClient talks to the upstream search API over HTTP with bearer auth.
// All requests are serialized through a shared queue so the service never
// hits the upstream with more than one request at a time.
type HTTPClient struct {
	baseURL string
	token   string
	httpc   *http.Client
	queue   *queue.Queue
}

// NewHTTPClient creates a client for the given API base URL. q may be shared
// with other clients of the same upstream.
func NewHTTPClient(baseURL, token string, q *queue.Queue) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		queue:   q,
	}
}

var _ Client = (*HTTPClient)(nil)

type searchResponse struct {
	Posts []types.Post `json:"posts"`
}

// SearchPosts implements Client.
func (c *HTTPClient) SearchPosts(ctx context.Context, query string, limit int) ([]types.Post, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("mode", "latest")

	var res searchResponse
	err := c.queue.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, "/posts/search?"+q.Encode(), &res)
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return res.Posts, nil
}

// GetPost implements Client.
func (c *HTTPClient) GetPost(ctx context.Context, id string) (*types.Post, error) {
	var post types.Post
	var missing bool
	err := c.queue.Do(ctx, func(ctx context.Context) error {
		err := c.getJSON(ctx, "/posts/"+url.PathEscape(id), &post)
		if errors.Is(err, errNotFound) {
			missing = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	if missing {
		return nil, nil
	}
	return &post, nil
}

var errNotFound = errors.New("not found")

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("upstream returned %d: %s", resp.StatusCode, body)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
