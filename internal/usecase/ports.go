package usecase

import (
	"context"
	"time"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/domain"
)

// PageOpts carries pagination parameters down to the skeleton queries. The
// cursor is the opaque packed form handed back to clients verbatim.
type PageOpts struct {
	Limit  int
	Cursor string
}

const (
	FeedItemPost   = "post"
	FeedItemRepost = "repost"
)

// FeedSkeletonItem is one unhydrated feed entry. Repost entries reference
// the reposted post and carry the reposting actor as originator.
type FeedSkeletonItem struct {
	ItemURI    string
	PostURI    string
	Type       string // post | repost
	Originator string
	SortAt     time.Time
	Cid        string
}

// FeedRepository produces feed skeleton pages. The returned cursor is
// derived from the raw batch boundary, before any visibility filtering.
type FeedRepository interface {
	AuthorFeed(ctx context.Context, actor string, opts PageOpts) ([]FeedSkeletonItem, string, error)
	Timeline(ctx context.Context, viewer string, opts PageOpts) ([]FeedSkeletonItem, string, error)
}

// PostData is a hydrated post: the indexed row plus its parsed record.
type PostData struct {
	URI       string
	Cid       string
	Creator   string
	Record    *meridian.PostRecord
	SortAt    time.Time
	IndexedAt time.Time

	InvalidReplyRoot       bool
	ViolatesThreadGate     bool
	ViolatesEmbeddingRules bool
}

type PostAggData struct {
	LikeCount   int64
	ReplyCount  int64
	RepostCount int64
	QuoteCount  int64
}

// GateData bundles the moderation gates attached to one post.
type GateData struct {
	ThreadgateURI string
	Threadgate    *meridian.ThreadgateRecord
	PostgateURI   string
	Postgate      *meridian.PostgateRecord
}

// PostRepository serves bulk lookups for hydration. All methods take URI
// batches; missing entries are simply absent from the result maps.
type PostRepository interface {
	PostsByURI(ctx context.Context, uris []string) (map[string]PostData, error)
	AggsByURI(ctx context.Context, uris []string) (map[string]PostAggData, error)
	GatesByRootURI(ctx context.Context, rootURIs []string) (map[string]GateData, error)
}

// ProfileRepository serves bulk profile lookups. Viewer state is attached
// later by presentation, never here.
type ProfileRepository interface {
	ProfilesByDid(ctx context.Context, dids []string) (map[string]domain.ProfileView, error)
}

// ThreadRef is one node of the reply topology, which survives post deletion.
type ThreadRef struct {
	URI       string
	ParentURI string
	RootURI   string
}

// ThreadRepository walks the reply topology.
type ThreadRepository interface {
	RefsByURI(ctx context.Context, uris []string) (map[string]ThreadRef, error)
	ChildrenOf(ctx context.Context, parentURIs []string) ([]ThreadRef, error)
}

// NotificationData is one stored notification, pre-hydration.
type NotificationData struct {
	ID            string
	Author        string
	Reason        meridian.NotificationReason
	ReasonSubject string
	SubjectURI    string
	SubjectCid    string
	SortAt        time.Time
}

type NotificationRepository interface {
	Page(ctx context.Context, recipient string, opts PageOpts) ([]NotificationData, string, error)
}
