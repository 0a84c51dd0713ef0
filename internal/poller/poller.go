// Package poller drives the ingestion loop over the monitored accounts.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/sourcewatch/internal/ident"
	"github.com/ibeckermayer/sourcewatch/internal/social"
	"github.com/ibeckermayer/sourcewatch/internal/store"
	"github.com/ibeckermayer/sourcewatch/internal/thread"
	"github.com/ibeckermayer/sourcewatch/internal/types"
)

const (
	// DefaultPageSize bounds each upstream search.
	DefaultPageSize = 20

	// DefaultRecencyWindow drops posts older than this even when the
	// watermark would admit them.
	DefaultRecencyWindow = 2 * time.Hour
)

// Options configures a Poller beyond its collaborators.
type Options struct {
	Handles       []string
	Interval      time.Duration
	PageSize      int
	RecencyWindow time.Duration
	AgentID       string
	SelfUserID    string
}

// Poller polls the monitored accounts on a fixed interval, ingesting new
// posts and thread-building replies. Ticks are single-flight: a tick that
// starts while the previous one is still running is skipped outright.
type Poller struct {
	client  social.Client
	store   *store.Store
	builder *thread.Builder
	opts    Options
	running atomic.Bool
	log     *slog.Logger
}

// New creates a Poller.
func New(client social.Client, st *store.Store, builder *thread.Builder, opts Options, log *slog.Logger) *Poller {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.RecencyWindow <= 0 {
		opts.RecencyWindow = DefaultRecencyWindow
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Poller{
		client:  client,
		store:   st,
		builder: builder,
		opts:    opts,
		log:     log.With("component", "poller"),
	}
}

// Start runs the polling loop until ctx is cancelled. The first tick fires
// immediately.
func (p *Poller) Start(ctx context.Context) {
	p.log.Info("monitoring loop started",
		"accounts", p.opts.Handles, "interval", p.opts.Interval)

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			p.Tick(ctx)
		case <-ctx.Done():
			p.log.Info("monitoring loop stopped")
			return
		}
	}
}

// Tick processes every monitored account once, sequentially. One account's
// failure never blocks the others.
func (p *Poller) Tick(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Info("previous tick still running, skipping")
		return
	}
	defer p.running.Store(false)

	for _, handle := range p.opts.Handles {
		if ctx.Err() != nil {
			return
		}
		if err := p.processAccount(ctx, handle); err != nil {
			p.log.Error("account check failed", "handle", handle, "error", err)
		}
	}
}

func (p *Poller) processAccount(ctx context.Context, handle string) error {
	p.log.Debug("checking account", "handle", handle)

	posts := p.fetchAccount(ctx, handle)

	watermark, err := p.store.GetWatermark(handle)
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}

	fresh := p.filterPosts(posts, watermark, time.Now())
	if len(fresh) == 0 {
		return nil
	}
	p.log.Info("found new posts", "handle", handle, "count", len(fresh))

	for _, post := range fresh {
		if !post.IsReply {
			continue
		}
		chain, err := p.builder.Build(ctx, post)
		if err != nil {
			p.log.Error("thread build failed", "post", post.ID, "error", err)
			continue
		}
		p.log.Debug("thread built", "post", post.ID, "length", len(chain))
	}

	p.ingest(fresh)

	// Advance the watermark only after the ingestion attempts. Individual
	// ingest failures are tolerated: the recency window bounds what a later
	// tick could re-see, and re-ingestion is idempotent.
	maxID := fresh[0].ID
	maxNum, _ := types.NumericID(maxID)
	for _, post := range fresh[1:] {
		n, _ := types.NumericID(post.ID)
		if n > maxNum {
			maxNum, maxID = n, post.ID
		}
	}
	err = p.store.SaveWatermark(store.Watermark{
		Handle:        handle,
		LastSeenID:    maxID,
		LastCheckedAt: time.Now(),
	})
	if err != nil {
		p.log.Error("watermark save failed", "handle", handle, "error", err)
	}

	return nil
}

// fetchAccount issues the posts and replies searches concurrently. Either
// sub-fetch failing degrades to an empty result for that sub-fetch only.
func (p *Poller) fetchAccount(ctx context.Context, handle string) []types.Post {
	var posts, replies []types.Post

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := p.client.SearchPosts(gctx, social.PostsQuery(handle), p.opts.PageSize)
		if err != nil {
			p.log.Warn("posts search failed", "handle", handle, "error", err)
			return nil
		}
		posts = res
		return nil
	})
	g.Go(func() error {
		res, err := p.client.SearchPosts(gctx, social.RepliesQuery(handle), p.opts.PageSize)
		if err != nil {
			p.log.Warn("replies search failed", "handle", handle, "error", err)
			return nil
		}
		replies = res
		return nil
	})
	g.Wait()

	return append(posts, replies...)
}

// filterPosts keeps posts that are well-formed, newer than the watermark
// (numeric id comparison; no watermark admits everything), inside the
// recency window, and not retweets.
func (p *Poller) filterPosts(posts []types.Post, watermark *store.Watermark, now time.Time) []types.Post {
	var watermarkID uint64
	if watermark != nil {
		n, err := types.NumericID(watermark.LastSeenID)
		if err != nil {
			p.log.Warn("stored watermark id is not numeric, ignoring", "id", watermark.LastSeenID)
		} else {
			watermarkID = n
		}
	}

	cutoff := now.Add(-p.opts.RecencyWindow)

	var fresh []types.Post
	for _, post := range posts {
		if !post.Valid() {
			p.log.Warn("dropping malformed post", "id", post.ID)
			continue
		}
		id, err := types.NumericID(post.ID)
		if err != nil {
			p.log.Warn("dropping post with non-numeric id", "id", post.ID)
			continue
		}
		if watermark != nil && id <= watermarkID {
			continue
		}
		if post.CreatedAt().Before(cutoff) {
			continue
		}
		if post.IsRetweet {
			continue
		}
		fresh = append(fresh, post)
	}
	return fresh
}

// ingest upserts a memory per post. Failures are logged and skipped; the
// deterministic keys make any later retry converge on the same records.
func (p *Poller) ingest(posts []types.Post) {
	for _, post := range posts {
		m := store.Memory{
			ID:           ident.ForPost(post.ID, p.opts.AgentID),
			AgentID:      p.opts.AgentID,
			RoomID:       ident.ForRoom(post.RootConversationID(), p.opts.AgentID),
			UserID:       p.identityFor(post.UserID),
			AuthorHandle: post.Username,
			Body:         post.Text,
			Source:       thread.Source,
			URL:          post.PermanentURL,
			CreatedAt:    post.CreatedAt(),
		}
		if post.InReplyToStatusID != "" {
			m.InReplyTo = ident.ForPost(post.InReplyToStatusID, p.opts.AgentID)
		}

		if _, created, err := p.store.CreateOrGetMemory(m); err != nil {
			p.log.Error("ingest failed", "post", post.ID, "error", err)
		} else if created {
			p.log.Debug("ingested post", "post", post.ID, "author", post.Username)
		}
	}
}

func (p *Poller) identityFor(userID string) string {
	if userID == p.opts.SelfUserID {
		return p.opts.AgentID
	}
	return ident.ForUser(userID)
}
