package meridian

import (
	"fmt"
	"net/url"
	"strings"
)

// Record collections understood by the indexing engine.
const (
	CollectionPost       = "app.meridian.feed.post"
	CollectionRepost     = "app.meridian.feed.repost"
	CollectionLike       = "app.meridian.feed.like"
	CollectionThreadgate = "app.meridian.feed.threadgate"
	CollectionPostgate   = "app.meridian.feed.postgate"
	CollectionFollow     = "app.meridian.graph.follow"
	CollectionBlock      = "app.meridian.graph.block"
	CollectionMute       = "app.meridian.graph.mute"
	CollectionListMute   = "app.meridian.graph.listmute"
	CollectionListBlock  = "app.meridian.graph.listblock"
	CollectionList       = "app.meridian.graph.list"
	CollectionListItem   = "app.meridian.graph.listitem"
	CollectionProfile    = "app.meridian.actor.profile"
)

// RecordURI identifies one record: mrd://<actor>/<collection>/<rkey>
type RecordURI struct {
	Actor      string
	Collection string
	Rkey       string
}

func (u RecordURI) String() string {
	return fmt.Sprintf("mrd://%s/%s/%s", u.Actor, u.Collection, u.Rkey)
}

func ParseRecordURI(raw string) (RecordURI, error) {
	uri, err := url.Parse(raw)
	if err != nil {
		return RecordURI{}, fmt.Errorf("invalid uri")
	}
	if uri.Scheme != "mrd" {
		return RecordURI{}, fmt.Errorf("unsupported uri scheme")
	}
	parts := strings.Split(strings.TrimPrefix(uri.Path, "/"), "/")
	if len(parts) != 2 || uri.Host == "" || parts[0] == "" || parts[1] == "" {
		return RecordURI{}, fmt.Errorf("invalid record uri")
	}
	return RecordURI{
		Actor:      uri.Host,
		Collection: parts[0],
		Rkey:       parts[1],
	}, nil
}

// ActorOf extracts the actor of a record URI, tolerating malformed input.
func ActorOf(raw string) string {
	uri, err := ParseRecordURI(raw)
	if err != nil {
		return ""
	}
	return uri.Actor
}

// CollectionOf extracts the collection of a record URI, tolerating malformed input.
func CollectionOf(raw string) string {
	uri, err := ParseRecordURI(raw)
	if err != nil {
		return ""
	}
	return uri.Collection
}

// ThreadgateURIFor returns the URI of the threadgate record governing a post.
// A threadgate shares its rkey with the post it gates.
func ThreadgateURIFor(postURI string) string {
	uri, err := ParseRecordURI(postURI)
	if err != nil {
		return ""
	}
	uri.Collection = CollectionThreadgate
	return uri.String()
}

// PostgateURIFor returns the URI of the postgate record governing a post.
func PostgateURIFor(postURI string) string {
	uri, err := ParseRecordURI(postURI)
	if err != nil {
		return ""
	}
	uri.Collection = CollectionPostgate
	return uri.String()
}
