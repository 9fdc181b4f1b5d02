package meridian

import (
	"time"
)

// StrongRef points at a specific revision of a record.
type StrongRef struct {
	URI string `json:"uri"`
	Cid string `json:"cid"`
}

// ReplyRef carries the thread position a post claims for itself.
type ReplyRef struct {
	Root   StrongRef `json:"root"`
	Parent StrongRef `json:"parent"`
}

type FacetType string

const (
	FacetMention FacetType = "mention"
	FacetLink    FacetType = "link"
)

// Facet annotates a span of post text with a mention or a link.
type Facet struct {
	Type  FacetType `json:"type"`
	Value string    `json:"value"`
}

type PostRecord struct {
	Text      string    `json:"text"`
	Facets    []Facet   `json:"facets,omitempty"`
	Embed     *Embed    `json:"embed,omitempty"`
	Reply     *ReplyRef `json:"reply,omitempty"`
	Langs     []string  `json:"langs,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Mentions returns the actors mentioned in the post's facets.
func (p *PostRecord) Mentions() []string {
	var out []string
	for _, f := range p.Facets {
		if f.Type == FacetMention {
			out = append(out, f.Value)
		}
	}
	return out
}

type RepostRecord struct {
	Subject   StrongRef `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

type LikeRecord struct {
	Subject   StrongRef `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

type FollowRecord struct {
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

type BlockRecord struct {
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

type MuteRecord struct {
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListMuteRecord mutes every member of the referenced list.
type ListMuteRecord struct {
	List      string    `json:"list"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListBlockRecord blocks every member of the referenced list.
type ListBlockRecord struct {
	List      string    `json:"list"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListPurpose string

const (
	ListPurposeModeration ListPurpose = "modlist"
	ListPurposeCuration   ListPurpose = "curatelist"
)

type ListRecord struct {
	Name        string      `json:"name"`
	Purpose     ListPurpose `json:"purpose"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type ListItemRecord struct {
	List      string    `json:"list"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
}

// ThreadgateRecord constrains who may reply under a root post. A nil Allow
// list permits everyone; an empty one permits nobody but the author.
type ThreadgateRecord struct {
	Post          string           `json:"post"`
	Allow         []ThreadgateRule `json:"allow,omitempty"`
	HiddenReplies []string         `json:"hiddenReplies,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// PostgateRecord controls embedding of the referenced post by other posts.
type PostgateRecord struct {
	Post             string    `json:"post"`
	DetachedEmbeds   []string  `json:"detachedEmbeds,omitempty"`
	DisableEmbedding bool      `json:"disableEmbedding,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type ProfileRecord struct {
	DisplayName string    `json:"displayName,omitempty"`
	Description string    `json:"description,omitempty"`
	AvatarCid   string    `json:"avatarCid,omitempty"`
	BannerCid   string    `json:"bannerCid,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type NotificationReason string

const (
	ReasonMention NotificationReason = "mention"
	ReasonReply   NotificationReason = "reply"
	ReasonQuote   NotificationReason = "quote"
	ReasonFollow  NotificationReason = "follow"
	ReasonRepost  NotificationReason = "repost"
	ReasonLike    NotificationReason = "like"
)

// NotificationEvent is emitted by the indexing engine and routed by the
// signal service. The engine never delivers notifications itself.
type NotificationEvent struct {
	ID            string             `json:"id"`
	Recipient     string             `json:"recipient"`
	Author        string             `json:"author"`
	Reason        NotificationReason `json:"reason"`
	ReasonSubject string             `json:"reasonSubject,omitempty"`
	SubjectURI    string             `json:"subjectUri"`
	SubjectCid    string             `json:"subjectCid"`
	SortAt        time.Time          `json:"sortAt"`
	Retraction    bool               `json:"retraction,omitempty"`
}
