package usecase

import (
	"context"
	"testing"
	"time"

	meridian "github.com/meridian-social/meridian"
)

type mockThreadRepo struct {
	refs map[string]ThreadRef
}

func (m *mockThreadRepo) RefsByURI(ctx context.Context, uris []string) (map[string]ThreadRef, error) {
	out := make(map[string]ThreadRef)
	for _, uri := range uris {
		if ref, ok := m.refs[uri]; ok {
			out[uri] = ref
		}
	}
	return out, nil
}

func (m *mockThreadRepo) ChildrenOf(ctx context.Context, parentURIs []string) ([]ThreadRef, error) {
	var out []ThreadRef
	for _, parent := range parentURIs {
		for _, ref := range m.refs {
			if ref.ParentURI == parent {
				out = append(out, ref)
			}
		}
	}
	return out, nil
}

const (
	rootURI  = "mrd://did:alice/app.meridian.feed.post/root"
	replyURI = "mrd://did:bob/app.meridian.feed.post/reply"
	leafURI  = "mrd://did:carol/app.meridian.feed.post/leaf"
	leaf2URI = "mrd://did:dave/app.meridian.feed.post/leaf2"
)

func threadFixture(threads *mockThreadRepo, posts *mockPostRepo, rels *mockRelationshipRepo) *ThreadUsecase {
	hydrator := NewHydrator(posts, &mockProfileRepo{}, NewRelationshipEngine(rels))
	return NewThreadUsecase(threads, hydrator)
}

func threadedPost(uri, creator string, offset time.Duration) PostData {
	p := post(uri, creator)
	p.SortAt = p.SortAt.Add(offset)
	return p
}

func TestThreadViewAssemblesAncestorsAndReplies(t *testing.T) {
	threads := &mockThreadRepo{refs: map[string]ThreadRef{
		rootURI:  {URI: rootURI},
		replyURI: {URI: replyURI, ParentURI: rootURI, RootURI: rootURI},
		leafURI:  {URI: leafURI, ParentURI: replyURI, RootURI: rootURI},
		leaf2URI: {URI: leaf2URI, ParentURI: replyURI, RootURI: rootURI},
	}}
	posts := &mockPostRepo{posts: map[string]PostData{
		rootURI:  threadedPost(rootURI, "did:alice", 0),
		replyURI: threadedPost(replyURI, "did:bob", time.Minute),
		leafURI:  threadedPost(leafURI, "did:carol", 2*time.Minute),
		leaf2URI: threadedPost(leaf2URI, "did:dave", 3*time.Minute),
	}}

	uc := threadFixture(threads, posts, &mockRelationshipRepo{})
	thread, err := uc.ThreadView(context.Background(), replyURI, "", 0, 0)
	if err != nil {
		t.Fatalf("thread view failed: %v", err)
	}

	if thread.Post == nil || thread.Post.URI != replyURI {
		t.Fatalf("expected anchor %s, got %+v", replyURI, thread.Post)
	}
	if thread.Parent == nil || thread.Parent.Post == nil || thread.Parent.Post.URI != rootURI {
		t.Fatalf("expected parent %s", rootURI)
	}
	if len(thread.Replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(thread.Replies))
	}
	// Replies come back in chronological order.
	if thread.Replies[0].Post.URI != leafURI || thread.Replies[1].Post.URI != leaf2URI {
		t.Fatalf("unexpected reply order: %s, %s", thread.Replies[0].Post.URI, thread.Replies[1].Post.URI)
	}
}

func TestThreadViewDeletedParentPlaceholder(t *testing.T) {
	threads := &mockThreadRepo{refs: map[string]ThreadRef{
		// The parent's post row is gone but its topology survives.
		replyURI: {URI: replyURI, ParentURI: rootURI, RootURI: rootURI},
		rootURI:  {URI: rootURI},
	}}
	posts := &mockPostRepo{posts: map[string]PostData{
		replyURI: threadedPost(replyURI, "did:bob", 0),
	}}

	uc := threadFixture(threads, posts, &mockRelationshipRepo{})
	thread, err := uc.ThreadView(context.Background(), replyURI, "", 0, 0)
	if err != nil {
		t.Fatalf("thread view failed: %v", err)
	}

	if thread.Post == nil || thread.Post.URI != replyURI {
		t.Fatalf("expected anchor to render")
	}
	if thread.Parent == nil || thread.Parent.NotFound == nil {
		t.Fatalf("expected not-found placeholder for deleted parent, got %+v", thread.Parent)
	}
	if thread.Parent.NotFound.URI != rootURI {
		t.Fatalf("placeholder must carry the deleted uri")
	}
}

func TestThreadViewHiddenRepliesPruned(t *testing.T) {
	threads := &mockThreadRepo{refs: map[string]ThreadRef{
		rootURI:  {URI: rootURI},
		leafURI:  {URI: leafURI, ParentURI: rootURI, RootURI: rootURI},
		leaf2URI: {URI: leaf2URI, ParentURI: rootURI, RootURI: rootURI},
	}}
	posts := &mockPostRepo{
		posts: map[string]PostData{
			rootURI:  threadedPost(rootURI, "did:alice", 0),
			leafURI:  threadedPost(leafURI, "did:carol", time.Minute),
			leaf2URI: threadedPost(leaf2URI, "did:dave", 2*time.Minute),
		},
		gates: map[string]GateData{
			rootURI: {
				ThreadgateURI: meridian.ThreadgateURIFor(rootURI),
				Threadgate:    &meridian.ThreadgateRecord{Post: rootURI, HiddenReplies: []string{leafURI}},
			},
		},
	}

	uc := threadFixture(threads, posts, &mockRelationshipRepo{})
	thread, err := uc.ThreadView(context.Background(), rootURI, "", 0, 0)
	if err != nil {
		t.Fatalf("thread view failed: %v", err)
	}

	if len(thread.Replies) != 1 {
		t.Fatalf("expected hidden reply pruned, got %d replies", len(thread.Replies))
	}
	if thread.Replies[0].Post.URI != leaf2URI {
		t.Fatalf("expected %s, got %s", leaf2URI, thread.Replies[0].Post.URI)
	}
}

func TestThreadViewBlockedAuthorPlaceholder(t *testing.T) {
	threads := &mockThreadRepo{refs: map[string]ThreadRef{
		rootURI: {URI: rootURI},
	}}
	posts := &mockPostRepo{posts: map[string]PostData{
		rootURI: threadedPost(rootURI, "did:alice", 0),
	}}
	rels := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:viewer", Target: "did:alice", BlockingURI: "mrd://did:viewer/app.meridian.graph.block/1"},
	}}

	uc := threadFixture(threads, posts, rels)
	thread, err := uc.ThreadView(context.Background(), rootURI, "did:viewer", 0, 0)
	if err != nil {
		t.Fatalf("thread view failed: %v", err)
	}

	if thread.Blocked == nil {
		t.Fatalf("expected blocked placeholder, got %+v", thread)
	}
	if thread.Post != nil {
		t.Fatalf("blocked node must not expose the post")
	}
}
