package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/meridian-social/meridian/internal/domain"
)

type mockFeedRepo struct {
	items  []FeedSkeletonItem
	cursor string
}

func (m *mockFeedRepo) AuthorFeed(ctx context.Context, actor string, opts PageOpts) ([]FeedSkeletonItem, string, error) {
	return m.items, m.cursor, nil
}

func (m *mockFeedRepo) Timeline(ctx context.Context, viewer string, opts PageOpts) ([]FeedSkeletonItem, string, error) {
	return m.items, m.cursor, nil
}

type mockPostRepo struct {
	posts map[string]PostData
	aggs  map[string]PostAggData
	gates map[string]GateData
}

func (m *mockPostRepo) PostsByURI(ctx context.Context, uris []string) (map[string]PostData, error) {
	out := make(map[string]PostData)
	for _, uri := range uris {
		if post, ok := m.posts[uri]; ok {
			out[uri] = post
		}
	}
	return out, nil
}

func (m *mockPostRepo) AggsByURI(ctx context.Context, uris []string) (map[string]PostAggData, error) {
	out := make(map[string]PostAggData)
	for _, uri := range uris {
		if agg, ok := m.aggs[uri]; ok {
			out[uri] = agg
		}
	}
	return out, nil
}

func (m *mockPostRepo) GatesByRootURI(ctx context.Context, rootURIs []string) (map[string]GateData, error) {
	out := make(map[string]GateData)
	for _, uri := range rootURIs {
		if gate, ok := m.gates[uri]; ok {
			out[uri] = gate
		}
	}
	return out, nil
}

type mockProfileRepo struct{}

func (m *mockProfileRepo) ProfilesByDid(ctx context.Context, dids []string) (map[string]domain.ProfileView, error) {
	out := make(map[string]domain.ProfileView)
	for _, did := range dids {
		out[did] = domain.ProfileView{Did: did, Handle: did + ".test"}
	}
	return out, nil
}

func feedFixture(repo *mockFeedRepo, posts *mockPostRepo, rels *mockRelationshipRepo) *FeedUsecase {
	hydrator := NewHydrator(posts, &mockProfileRepo{}, NewRelationshipEngine(rels))
	return NewFeedUsecase(repo, hydrator)
}

func post(uri, creator string) PostData {
	return PostData{
		URI:       uri,
		Cid:       "mzc-" + uri,
		Creator:   creator,
		SortAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		IndexedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

const (
	postA = "mrd://did:alice/app.meridian.feed.post/1"
	postB = "mrd://did:bob/app.meridian.feed.post/2"
)

func TestAuthorFeedCursorReflectsUnfilteredBatch(t *testing.T) {
	feedRepo := &mockFeedRepo{
		items: []FeedSkeletonItem{
			{ItemURI: postA, PostURI: postA, Type: FeedItemPost, Originator: "did:alice"},
			{ItemURI: postB, PostURI: postB, Type: FeedItemPost, Originator: "did:bob"},
		},
		cursor: "1700000000000::mzc-last",
	}
	// Only the first post is indexed; the second gets filtered.
	postRepo := &mockPostRepo{posts: map[string]PostData{postA: post(postA, "did:alice")}}

	uc := feedFixture(feedRepo, postRepo, &mockRelationshipRepo{})
	page, err := uc.AuthorFeed(context.Background(), "did:alice", "", PageOpts{Limit: 2})
	if err != nil {
		t.Fatalf("author feed failed: %v", err)
	}

	if len(page.Feed) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Feed))
	}
	if page.Cursor != "1700000000000::mzc-last" {
		t.Fatalf("rules must not move the cursor, got %q", page.Cursor)
	}
}

func TestTimelineFiltersMutedAuthors(t *testing.T) {
	feedRepo := &mockFeedRepo{
		items: []FeedSkeletonItem{
			{ItemURI: postA, PostURI: postA, Type: FeedItemPost, Originator: "did:alice"},
			{ItemURI: postB, PostURI: postB, Type: FeedItemPost, Originator: "did:bob"},
		},
	}
	postRepo := &mockPostRepo{posts: map[string]PostData{
		postA: post(postA, "did:alice"),
		postB: post(postB, "did:bob"),
	}}
	rels := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:viewer", Target: "did:bob", Muting: true},
	}}

	uc := feedFixture(feedRepo, postRepo, rels)
	page, err := uc.Timeline(context.Background(), "did:viewer", PageOpts{Limit: 10})
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}

	if len(page.Feed) != 1 {
		t.Fatalf("expected muted author filtered, got %d items", len(page.Feed))
	}
	if page.Feed[0].Post.URI != postA {
		t.Fatalf("expected %s got %s", postA, page.Feed[0].Post.URI)
	}
}

func TestAuthorFeedKeepsMutedAuthor(t *testing.T) {
	feedRepo := &mockFeedRepo{
		items: []FeedSkeletonItem{
			{ItemURI: postB, PostURI: postB, Type: FeedItemPost, Originator: "did:bob"},
		},
	}
	postRepo := &mockPostRepo{posts: map[string]PostData{postB: post(postB, "did:bob")}}
	rels := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:viewer", Target: "did:bob", Muting: true},
	}}

	uc := feedFixture(feedRepo, postRepo, rels)
	page, err := uc.AuthorFeed(context.Background(), "did:bob", "did:viewer", PageOpts{Limit: 10})
	if err != nil {
		t.Fatalf("author feed failed: %v", err)
	}

	// Mutes never filter a feed the viewer requested explicitly.
	if len(page.Feed) != 1 {
		t.Fatalf("expected muted author kept on author feed, got %d items", len(page.Feed))
	}
}

func TestFeedBlockHidesBothDirections(t *testing.T) {
	feedRepo := &mockFeedRepo{
		items: []FeedSkeletonItem{
			{ItemURI: postB, PostURI: postB, Type: FeedItemPost, Originator: "did:bob"},
		},
	}
	postRepo := &mockPostRepo{posts: map[string]PostData{postB: post(postB, "did:bob")}}
	rels := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:viewer", Target: "did:bob", BlockedByURI: "mrd://did:bob/app.meridian.graph.block/1"},
	}}

	uc := feedFixture(feedRepo, postRepo, rels)
	page, err := uc.AuthorFeed(context.Background(), "did:bob", "did:viewer", PageOpts{Limit: 10})
	if err != nil {
		t.Fatalf("author feed failed: %v", err)
	}
	if len(page.Feed) != 0 {
		t.Fatalf("expected blocked-by author hidden, got %d items", len(page.Feed))
	}
}

func TestFeedDropsGateViolatingPosts(t *testing.T) {
	violating := post(postB, "did:bob")
	violating.ViolatesThreadGate = true

	feedRepo := &mockFeedRepo{
		items: []FeedSkeletonItem{
			{ItemURI: postB, PostURI: postB, Type: FeedItemPost, Originator: "did:bob"},
		},
	}
	postRepo := &mockPostRepo{posts: map[string]PostData{postB: violating}}

	uc := feedFixture(feedRepo, postRepo, &mockRelationshipRepo{})
	page, err := uc.AuthorFeed(context.Background(), "did:bob", "", PageOpts{Limit: 10})
	if err != nil {
		t.Fatalf("author feed failed: %v", err)
	}
	if len(page.Feed) != 0 {
		t.Fatalf("expected gate-violating post hidden, got %d items", len(page.Feed))
	}
}

func TestRepostCarriesReason(t *testing.T) {
	repostURI := "mrd://did:carol/app.meridian.feed.repost/1"
	when := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	feedRepo := &mockFeedRepo{
		items: []FeedSkeletonItem{
			{ItemURI: repostURI, PostURI: postA, Type: FeedItemRepost, Originator: "did:carol", SortAt: when},
		},
	}
	postRepo := &mockPostRepo{posts: map[string]PostData{postA: post(postA, "did:alice")}}

	uc := feedFixture(feedRepo, postRepo, &mockRelationshipRepo{})
	page, err := uc.Timeline(context.Background(), "did:viewer", PageOpts{Limit: 10})
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}

	if len(page.Feed) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Feed))
	}
	entry := page.Feed[0]
	if entry.Post.Author.Did != "did:alice" {
		t.Fatalf("post author must be the original poster, got %s", entry.Post.Author.Did)
	}
	if entry.Reason == nil || entry.Reason.By.Did != "did:carol" {
		t.Fatalf("expected repost reason by did:carol, got %+v", entry.Reason)
	}
	if !entry.Reason.IndexedAt.Equal(when) {
		t.Fatalf("reason must carry the repost time")
	}
}
