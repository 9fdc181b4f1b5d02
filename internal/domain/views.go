package domain

import (
	"time"

	meridian "github.com/meridian-social/meridian"
)

// ViewerState captures the relationship between the requesting actor and a
// profile, for rendering "muted via list X" and friends.
type ViewerState struct {
	Muted       bool   `json:"muted,omitempty"`
	MutedByList string `json:"mutedByList,omitempty"`
	Blocking    string `json:"blocking,omitempty"`
	BlockedBy   bool   `json:"blockedBy,omitempty"`
}

type ProfileView struct {
	Did            string       `json:"did"`
	Handle         string       `json:"handle,omitempty"`
	DisplayName    string       `json:"displayName,omitempty"`
	Description    string       `json:"description,omitempty"`
	AvatarCid      string       `json:"avatarCid,omitempty"`
	FollowersCount int64        `json:"followersCount"`
	FollowsCount   int64        `json:"followsCount"`
	PostsCount     int64        `json:"postsCount"`
	Viewer         *ViewerState `json:"viewer,omitempty"`
	IndexedAt      time.Time    `json:"indexedAt"`
}

type PostView struct {
	URI         string               `json:"uri"`
	Cid         string               `json:"cid"`
	Author      ProfileView          `json:"author"`
	Record      *meridian.PostRecord `json:"record"`
	ReplyCount  int64                `json:"replyCount"`
	RepostCount int64                `json:"repostCount"`
	LikeCount   int64                `json:"likeCount"`
	QuoteCount  int64                `json:"quoteCount"`
	IndexedAt   time.Time            `json:"indexedAt"`
}

// ReasonRepost explains why a post appears in a feed out of author order.
type ReasonRepost struct {
	By        ProfileView `json:"by"`
	IndexedAt time.Time   `json:"indexedAt"`
}

type FeedViewPost struct {
	Post   PostView      `json:"post"`
	Reason *ReasonRepost `json:"reason,omitempty"`
}

// FeedPage is one page of a feed plus the cursor for the next. An empty
// cursor means the feed is exhausted.
type FeedPage struct {
	Feed   []FeedViewPost `json:"feed"`
	Cursor string         `json:"cursor,omitempty"`
}

// NotFoundPost stands in for a referenced post that is absent from the
// index, including deleted thread parents.
type NotFoundPost struct {
	URI      string `json:"uri"`
	NotFound bool   `json:"notFound"`
}

// BlockedPost stands in for a post hidden by a block between the viewer and
// its author.
type BlockedPost struct {
	URI     string `json:"uri"`
	Author  string `json:"author"`
	Blocked bool   `json:"blocked"`
}

// ThreadViewPost is one node of a thread view. Exactly one of Post,
// NotFound, Blocked is set.
type ThreadViewPost struct {
	Post     *PostView        `json:"post,omitempty"`
	NotFound *NotFoundPost    `json:"notFound,omitempty"`
	Blocked  *BlockedPost     `json:"blocked,omitempty"`
	Parent   *ThreadViewPost  `json:"parent,omitempty"`
	Replies  []ThreadViewPost `json:"replies,omitempty"`
}

type NotificationView struct {
	ID            string                      `json:"id"`
	Author        ProfileView                 `json:"author"`
	Reason        meridian.NotificationReason `json:"reason"`
	ReasonSubject string                      `json:"reasonSubject,omitempty"`
	SubjectURI    string                      `json:"subjectUri"`
	SubjectCid    string                      `json:"subjectCid"`
	SortAt        time.Time                   `json:"sortAt"`
}

type NotificationPage struct {
	Notifications []NotificationView `json:"notifications"`
	Cursor        string             `json:"cursor,omitempty"`
}
