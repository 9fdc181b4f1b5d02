package models

import (
	"time"

	"github.com/lib/pq"
)

type Post struct {
	URI            string         `json:"uri" gorm:"primaryKey;type:text"`
	Cid            string         `json:"cid" gorm:"type:text;not null;index:idx_post_sort,priority:2"`
	Creator        string         `json:"creator" gorm:"type:text;index;not null"`
	Text           string         `json:"text" gorm:"type:text"`
	ReplyRoot      *string        `json:"replyRoot" gorm:"type:text;index"`
	ReplyRootCid   *string        `json:"replyRootCid" gorm:"type:text"`
	ReplyParent    *string        `json:"replyParent" gorm:"type:text;index"`
	ReplyParentCid *string        `json:"replyParentCid" gorm:"type:text"`
	Langs          pq.StringArray `json:"langs" gorm:"type:text[]"`
	Tags           pq.StringArray `json:"tags" gorm:"type:text[]"`
	CreatedAt      time.Time      `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
	IndexedAt      time.Time      `json:"indexedAt" gorm:"type:timestamp with time zone;not null"`
	SortAt         time.Time      `json:"sortAt" gorm:"type:timestamp with time zone;not null;index:idx_post_sort,priority:1"`

	// Validity flags, updated in place after insert. Null means "not
	// evaluated", which readers treat the same as false.
	InvalidReplyRoot       *bool `json:"invalidReplyRoot" gorm:"type:boolean"`
	ViolatesThreadGate     *bool `json:"violatesThreadGate" gorm:"type:boolean"`
	ViolatesEmbeddingRules *bool `json:"violatesEmbeddingRules" gorm:"type:boolean"`
}

// ThreadRef preserves the reply topology of a post independently of the post
// row itself. Rows are never removed on post deletion so that hierarchy
// walks and notification repair keep working for surviving descendants.
type ThreadRef struct {
	URI       string  `json:"uri" gorm:"primaryKey;type:text"`
	ParentURI *string `json:"parentUri" gorm:"type:text;index"`
	RootURI   *string `json:"rootUri" gorm:"type:text;index"`
}

const (
	FeedItemPost   = "post"
	FeedItemRepost = "repost"
)

// FeedItem is the unit of feed pagination. Posts produce one; each repost
// produces another referencing the same post.
type FeedItem struct {
	URI           string    `json:"uri" gorm:"primaryKey;type:text"`
	Type          string    `json:"type" gorm:"type:text;not null"` // post | repost
	Cid           string    `json:"cid" gorm:"type:text;not null;index:idx_feed_item_sort,priority:2"`
	PostURI       string    `json:"postUri" gorm:"type:text;index;not null"`
	OriginatorDid string    `json:"originatorDid" gorm:"type:text;index;not null"`
	SortAt        time.Time `json:"sortAt" gorm:"type:timestamp with time zone;not null;index:idx_feed_item_sort,priority:1"`
}

type PostEmbedImage struct {
	PostURI  string `json:"postUri" gorm:"primaryKey;type:text"`
	Position int    `json:"position" gorm:"primaryKey"`
	ImageCid string `json:"imageCid" gorm:"type:text;not null"`
	Alt      string `json:"alt" gorm:"type:text"`
}

type PostEmbedExternal struct {
	PostURI     string `json:"postUri" gorm:"primaryKey;type:text"`
	URI         string `json:"uri" gorm:"type:text;not null"`
	Title       string `json:"title" gorm:"type:text"`
	Description string `json:"description" gorm:"type:text"`
	ThumbCid    string `json:"thumbCid" gorm:"type:text"`
}

type PostEmbedRecord struct {
	PostURI  string `json:"postUri" gorm:"primaryKey;type:text"`
	EmbedURI string `json:"embedUri" gorm:"type:text;index;not null"`
	EmbedCid string `json:"embedCid" gorm:"type:text;not null"`
}

type PostEmbedVideo struct {
	PostURI  string `json:"postUri" gorm:"primaryKey;type:text"`
	VideoCid string `json:"videoCid" gorm:"type:text;not null"`
	Alt      string `json:"alt" gorm:"type:text"`
}

// Quote links a quoting post to the post it embeds.
type Quote struct {
	URI        string `json:"uri" gorm:"primaryKey;type:text"`
	Cid        string `json:"cid" gorm:"type:text;not null"`
	Subject    string `json:"subject" gorm:"type:text;index;not null"`
	SubjectCid string `json:"subjectCid" gorm:"type:text;index;not null"`
}

type Threadgate struct {
	URI       string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid       string    `json:"cid" gorm:"type:text;not null"`
	Creator   string    `json:"creator" gorm:"type:text;index;not null"`
	PostURI   string    `json:"postUri" gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
	IndexedAt time.Time `json:"indexedAt" gorm:"type:timestamp with time zone;not null"`
}

type Postgate struct {
	URI       string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid       string    `json:"cid" gorm:"type:text;not null"`
	Creator   string    `json:"creator" gorm:"type:text;index;not null"`
	PostURI   string    `json:"postUri" gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
	IndexedAt time.Time `json:"indexedAt" gorm:"type:timestamp with time zone;not null"`
}

// PostAgg carries denormalized per-post counters maintained by correlated
// subquery upserts.
type PostAgg struct {
	URI         string `json:"uri" gorm:"primaryKey;type:text"`
	LikeCount   int64  `json:"likeCount" gorm:"not null;default:0"`
	ReplyCount  int64  `json:"replyCount" gorm:"not null;default:0"`
	RepostCount int64  `json:"repostCount" gorm:"not null;default:0"`
	QuoteCount  int64  `json:"quoteCount" gorm:"not null;default:0"`
}

type Like struct {
	URI        string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid        string    `json:"cid" gorm:"type:text;not null"`
	Creator    string    `json:"creator" gorm:"type:text;index:idx_like_creator_subject,unique,priority:1;not null"`
	Subject    string    `json:"subject" gorm:"type:text;index:idx_like_creator_subject,unique,priority:2;not null"`
	SubjectCid string    `json:"subjectCid" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
	SortAt     time.Time `json:"sortAt" gorm:"type:timestamp with time zone;not null"`
}

type Repost struct {
	URI        string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid        string    `json:"cid" gorm:"type:text;not null"`
	Creator    string    `json:"creator" gorm:"type:text;index:idx_repost_creator_subject,unique,priority:1;not null"`
	Subject    string    `json:"subject" gorm:"type:text;index:idx_repost_creator_subject,unique,priority:2;not null"`
	SubjectCid string    `json:"subjectCid" gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
	SortAt     time.Time `json:"sortAt" gorm:"type:timestamp with time zone;not null"`
}
