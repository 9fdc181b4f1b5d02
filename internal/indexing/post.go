package indexing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/domain"
	"github.com/meridian-social/meridian/internal/infra/database/models"
)

type postPlugin struct{}

func decodePost(raw json.RawMessage) (*meridian.PostRecord, error) {
	var record meridian.PostRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed post record"}
	}
	return &record, nil
}

// sortAt clamps client-supplied timestamps to indexing time so records dated
// in the future cannot pin themselves to the top of feeds.
func sortAt(createdAt, indexedAt time.Time) time.Time {
	if createdAt.Before(indexedAt) {
		return createdAt
	}
	return indexedAt
}

// replyRefs is what reply validation could load about the claimed parent and
// root. Nil members mean the referenced post is not indexed.
type replyRefs struct {
	parent *models.Post
	root   *models.Post
}

func loadReplyRefs(tx *gorm.DB, reply *meridian.ReplyRef) (*replyRefs, error) {
	refs := &replyRefs{}
	uris := []string{reply.Parent.URI, reply.Root.URI}

	var posts []models.Post
	if err := tx.Where("uri IN ?", uris).Find(&posts).Error; err != nil {
		return nil, errors.Wrap(err, "load reply refs")
	}
	for i := range posts {
		if posts[i].URI == reply.Parent.URI {
			refs.parent = &posts[i]
		}
		if posts[i].URI == reply.Root.URI {
			refs.root = &posts[i]
		}
	}
	return refs, nil
}

// invalidReplyRoot reports whether the reply's claimed thread position can be
// trusted. A reply is invalid until its parent is indexed and itself valid,
// so out-of-order arrivals start hidden and are revalidated when the missing
// ancestor shows up.
func invalidReplyRoot(reply *meridian.ReplyRef, refs *replyRefs) bool {
	if refs.parent == nil {
		return true
	}
	if derefBool(refs.parent.InvalidReplyRoot) {
		return true
	}
	if refs.parent.ReplyRoot == nil || *refs.parent.ReplyRoot == "" {
		// The parent is itself a thread root.
		return reply.Root.URI != refs.parent.URI
	}
	return reply.Root.URI != *refs.parent.ReplyRoot
}

// gateFacts is everything threadgate evaluation needs, gathered up front so
// the decision itself stays pure.
type gateFacts struct {
	rootAuthor   string
	replyAuthor  string
	rootMentions map[string]struct{}
	followsRoot  bool            // reply author follows root author
	rootFollows  bool            // root author follows reply author
	listMember   map[string]bool // list uri -> reply author is member
}

// threadgateViolates evaluates the allow rules. A nil rule list permits
// everyone, an empty one nobody but the root author.
func threadgateViolates(gate *meridian.ThreadgateRecord, facts gateFacts) bool {
	if facts.replyAuthor == facts.rootAuthor {
		return false
	}
	if gate == nil || gate.Allow == nil {
		return false
	}
	for _, rule := range gate.Allow {
		switch r := rule.(type) {
		case meridian.RuleMention:
			if _, ok := facts.rootMentions[facts.replyAuthor]; ok {
				return false
			}
		case meridian.RuleFollower:
			if facts.followsRoot {
				return false
			}
		case meridian.RuleFollowing:
			if facts.rootFollows {
				return false
			}
		case meridian.RuleList:
			if facts.listMember[r.List] {
				return false
			}
		}
	}
	return true
}

func loadThreadgate(tx *gorm.DB, rootURI string) (*meridian.ThreadgateRecord, error) {
	var gates []models.Threadgate
	if err := tx.Where("post_uri = ?", rootURI).Find(&gates).Error; err != nil {
		return nil, errors.Wrap(err, "load threadgate")
	}
	if len(gates) == 0 {
		return nil, nil
	}
	var record models.Record
	err := tx.Where("uri = ?", gates[0].URI).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load threadgate record")
	}
	var gate meridian.ThreadgateRecord
	if err := json.Unmarshal([]byte(record.JSON), &gate); err != nil {
		return nil, nil
	}
	return &gate, nil
}

func gatherGateFacts(tx *gorm.DB, gate *meridian.ThreadgateRecord, rootURI, rootAuthor, replyAuthor string) (gateFacts, error) {
	facts := gateFacts{
		rootAuthor:   rootAuthor,
		replyAuthor:  replyAuthor,
		rootMentions: make(map[string]struct{}),
		listMember:   make(map[string]bool),
	}
	if gate == nil || gate.Allow == nil || replyAuthor == rootAuthor {
		return facts, nil
	}

	for _, rule := range gate.Allow {
		switch r := rule.(type) {
		case meridian.RuleMention:
			var record models.Record
			err := tx.Where("uri = ?", rootURI).First(&record).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return facts, errors.Wrap(err, "gate facts: root record")
			}
			if err == nil {
				var root meridian.PostRecord
				if json.Unmarshal([]byte(record.JSON), &root) == nil {
					for _, did := range root.Mentions() {
						facts.rootMentions[did] = struct{}{}
					}
				}
			}
		case meridian.RuleFollower:
			var n int64
			err := tx.Model(&models.Follow{}).
				Where("creator = ? AND subject_did = ?", replyAuthor, rootAuthor).
				Count(&n).Error
			if err != nil {
				return facts, errors.Wrap(err, "gate facts: follower")
			}
			facts.followsRoot = n > 0
		case meridian.RuleFollowing:
			var n int64
			err := tx.Model(&models.Follow{}).
				Where("creator = ? AND subject_did = ?", rootAuthor, replyAuthor).
				Count(&n).Error
			if err != nil {
				return facts, errors.Wrap(err, "gate facts: following")
			}
			facts.rootFollows = n > 0
		case meridian.RuleList:
			var n int64
			err := tx.Model(&models.ListItem{}).
				Where("list_uri = ? AND subject_did = ?", r.List, replyAuthor).
				Count(&n).Error
			if err != nil {
				return facts, errors.Wrap(err, "gate facts: list")
			}
			facts.listMember[r.List] = n > 0
		}
	}
	return facts, nil
}

func (p *postPlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodePost(raw)
	if err != nil {
		return err
	}
	rawURI := uri.String()
	sort := sortAt(record.CreatedAt, now)

	post := models.Post{
		URI:       rawURI,
		Cid:       cid,
		Creator:   uri.Actor,
		Text:      record.Text,
		Langs:     record.Langs,
		Tags:      record.Tags,
		CreatedAt: record.CreatedAt,
		IndexedAt: now,
		SortAt:    sort,
	}
	threadRef := models.ThreadRef{URI: rawURI}

	if record.Reply != nil {
		post.ReplyRoot = &record.Reply.Root.URI
		post.ReplyRootCid = &record.Reply.Root.Cid
		post.ReplyParent = &record.Reply.Parent.URI
		post.ReplyParentCid = &record.Reply.Parent.Cid
		threadRef.ParentURI = &record.Reply.Parent.URI
		threadRef.RootURI = &record.Reply.Root.URI

		refs, err := loadReplyRefs(tx, record.Reply)
		if err != nil {
			return err
		}
		if invalidReplyRoot(record.Reply, refs) {
			t := true
			post.InvalidReplyRoot = &t
		}

		rootAuthor := meridian.ActorOf(record.Reply.Root.URI)
		gate, err := loadThreadgate(tx, record.Reply.Root.URI)
		if err != nil {
			return err
		}
		facts, err := gatherGateFacts(tx, gate, record.Reply.Root.URI, rootAuthor, uri.Actor)
		if err != nil {
			return err
		}
		if threadgateViolates(gate, facts) {
			t := true
			post.ViolatesThreadGate = &t
		}
	}

	if record.Embed != nil {
		violates, err := p.indexEmbeds(tx, rawURI, cid, record.Embed)
		if err != nil {
			return err
		}
		if violates {
			t := true
			post.ViolatesEmbeddingRules = &t
		}
	}

	if err := tx.Create(&post).Error; err != nil {
		return errors.Wrap(err, "insert post")
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&threadRef).Error; err != nil {
		return errors.Wrap(err, "insert thread ref")
	}

	item := models.FeedItem{
		URI:           rawURI,
		Type:          models.FeedItemPost,
		Cid:           cid,
		PostURI:       rawURI,
		OriginatorDid: uri.Actor,
		SortAt:        sort,
	}
	if err := tx.Create(&item).Error; err != nil {
		return errors.Wrap(err, "insert feed item")
	}
	return nil
}

// indexEmbeds writes embed rows and registers quotes. Reports whether the
// post violates the embedding rules of a quoted post's postgate.
func (p *postPlugin) indexEmbeds(tx *gorm.DB, postURI, postCid string, embed *meridian.Embed) (bool, error) {
	violates := false
	position := 0
	for _, variant := range embed.Flatten() {
		switch v := variant.(type) {
		case meridian.EmbedImages:
			for _, image := range v.Images {
				row := models.PostEmbedImage{
					PostURI:  postURI,
					Position: position,
					ImageCid: image.ImageCid,
					Alt:      image.Alt,
				}
				if err := tx.Create(&row).Error; err != nil {
					return false, errors.Wrap(err, "insert embed image")
				}
				position++
			}
		case meridian.EmbedExternal:
			row := models.PostEmbedExternal{
				PostURI:     postURI,
				URI:         v.URI,
				Title:       v.Title,
				Description: v.Description,
				ThumbCid:    v.ThumbCid,
			}
			if err := tx.Create(&row).Error; err != nil {
				return false, errors.Wrap(err, "insert embed external")
			}
		case meridian.EmbedVideo:
			row := models.PostEmbedVideo{
				PostURI:  postURI,
				VideoCid: v.VideoCid,
				Alt:      v.Alt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return false, errors.Wrap(err, "insert embed video")
			}
		case meridian.EmbedRecord:
			row := models.PostEmbedRecord{
				PostURI:  postURI,
				EmbedURI: v.Record.URI,
				EmbedCid: v.Record.Cid,
			}
			if err := tx.Create(&row).Error; err != nil {
				return false, errors.Wrap(err, "insert embed record")
			}
			if meridian.CollectionOf(v.Record.URI) == meridian.CollectionPost {
				quote := models.Quote{
					URI:        postURI,
					Cid:        postCid,
					Subject:    v.Record.URI,
					SubjectCid: v.Record.Cid,
				}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&quote).Error; err != nil {
					return false, errors.Wrap(err, "insert quote")
				}
				bad, err := embeddingViolation(tx, postURI, v.Record.URI)
				if err != nil {
					return false, err
				}
				violates = violates || bad
			}
		}
	}
	return violates, nil
}

// embeddingViolation checks the quoted post's postgate.
func embeddingViolation(tx *gorm.DB, quotingURI, quotedURI string) (bool, error) {
	var gates []models.Postgate
	if err := tx.Where("post_uri = ?", quotedURI).Find(&gates).Error; err != nil {
		return false, errors.Wrap(err, "load postgate")
	}
	if len(gates) == 0 {
		return false, nil
	}
	var record models.Record
	err := tx.Where("uri = ?", gates[0].URI).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "load postgate record")
	}
	var gate meridian.PostgateRecord
	if err := json.Unmarshal([]byte(record.JSON), &gate); err != nil {
		return false, nil
	}
	if gate.DisableEmbedding {
		return true, nil
	}
	for _, detached := range gate.DetachedEmbeds {
		if detached == quotingURI {
			return true, nil
		}
	}
	return false, nil
}

func (p *postPlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	return "", nil
}

func (p *postPlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	record, err := decodePost(raw)
	if err != nil {
		return nil, err
	}
	rawURI := uri.String()
	sort := sortAt(record.CreatedAt, now)

	var post models.Post
	if err := tx.Where("uri = ?", rawURI).First(&post).Error; err != nil {
		return nil, errors.Wrap(err, "load indexed post")
	}

	var events []meridian.NotificationEvent

	for _, did := range record.Mentions() {
		events = append(events, newEvent(did, uri.Actor, meridian.ReasonMention, "", rawURI, cid, sort))
	}

	rootURI := rawURI
	if record.Reply != nil {
		rootURI = record.Reply.Root.URI
	}
	hidden, err := hiddenReplies(tx, rootURI)
	if err != nil {
		return nil, err
	}

	// Reply notifications walk the ancestor chain. A gate-violating reply
	// notifies nobody; the walk stops early at replies the root author has
	// hidden.
	if record.Reply != nil && !derefBool(post.ViolatesThreadGate) && !derefBool(post.InvalidReplyRoot) {
		ancestors, err := ancestorChain(tx, rawURI, domain.ReplyNotifDepth, hidden)
		if err != nil {
			return nil, err
		}
		for _, ancestor := range ancestors {
			recipient := meridian.ActorOf(ancestor)
			events = append(events, newEvent(recipient, uri.Actor, meridian.ReasonReply, record.Reply.Parent.URI, rawURI, cid, sort))
		}
	}

	if record.Embed != nil && !derefBool(post.ViolatesEmbeddingRules) {
		for _, variant := range record.Embed.Flatten() {
			if er, ok := variant.(meridian.EmbedRecord); ok {
				if meridian.CollectionOf(er.Record.URI) == meridian.CollectionPost {
					events = append(events, newEvent(meridian.ActorOf(er.Record.URI), uri.Actor, meridian.ReasonQuote, er.Record.URI, rawURI, cid, sort))
				}
			}
		}
	}

	// Descendants that arrived before this post were indexed as invalid and
	// could not notify anyone at the time; repair them now.
	repaired, err := p.repairDescendants(tx, rawURI, hidden)
	if err != nil {
		return nil, err
	}
	events = append(events, repaired...)

	return dedupeByRecipient(uri.Actor, events), nil
}

func derefBool(b *bool) bool {
	return b != nil && *b
}

func hiddenReplies(tx *gorm.DB, rootURI string) (map[string]struct{}, error) {
	gate, err := loadThreadgate(tx, rootURI)
	if err != nil {
		return nil, err
	}
	hidden := make(map[string]struct{})
	if gate != nil {
		for _, uri := range gate.HiddenReplies {
			hidden[uri] = struct{}{}
		}
	}
	return hidden, nil
}

// ancestorChain walks parent pointers upward, at most depth steps, skipping
// nothing but stopping entirely at a hidden ancestor or a cycle. Returns the
// ancestor URIs in walk order.
func ancestorChain(tx *gorm.DB, fromURI string, depth int, hidden map[string]struct{}) ([]string, error) {
	var chain []string
	visited := map[string]struct{}{fromURI: {}}
	current := fromURI
	for i := 0; i < depth && i < domain.MaxHierarchyDepth; i++ {
		var refs []models.ThreadRef
		if err := tx.Where("uri = ?", current).Find(&refs).Error; err != nil {
			return nil, errors.Wrap(err, "ancestor chain")
		}
		if len(refs) == 0 || refs[0].ParentURI == nil || *refs[0].ParentURI == "" {
			break
		}
		parent := *refs[0].ParentURI
		if _, seen := visited[parent]; seen {
			break
		}
		if _, isHidden := hidden[current]; isHidden && current != fromURI {
			break
		}
		visited[parent] = struct{}{}
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// repairedReply is an already-indexed reply found beneath a late-arriving
// post. Depth counts steps below the arriving post, direct children at 1.
type repairedReply struct {
	depth int
	post  models.Post
}

// repairDescendants handles replies that arrived before this post. They were
// indexed as invalid and could not notify their ancestors at the time, so
// revalidate them against the now-known hierarchy and emit the reply
// notifications in-order indexing would have produced.
func (p *postPlugin) repairDescendants(tx *gorm.DB, rawURI string, hidden map[string]struct{}) ([]meridian.NotificationEvent, error) {
	descendants, err := p.revalidateDescendants(tx, rawURI)
	if err != nil {
		return nil, err
	}
	if len(descendants) == 0 {
		return nil, nil
	}
	ancestors, err := ancestorChain(tx, rawURI, domain.ReplyNotifDepth, hidden)
	if err != nil {
		return nil, err
	}
	uppers := append([]string{rawURI}, ancestors...)
	return repairEvents(uppers, descendants, hidden), nil
}

// revalidateDescendants walks already-indexed replies beneath a late-arriving
// post and recomputes their validity now that the ancestor exists. Each level
// is revalidated before its children, so invalidity chains resolve top-down
// within one walk.
func (p *postPlugin) revalidateDescendants(tx *gorm.DB, rawURI string) ([]repairedReply, error) {
	var found []repairedReply
	frontier := []string{rawURI}
	visited := map[string]struct{}{rawURI: {}}

	for depth := 1; depth <= domain.ReplyNotifDepth && len(frontier) > 0; depth++ {
		var refs []models.ThreadRef
		if err := tx.Where("parent_uri IN ?", frontier).Find(&refs).Error; err != nil {
			return nil, errors.Wrap(err, "repair descendants: refs")
		}
		next := make([]string, 0, len(refs))
		for _, ref := range refs {
			if _, seen := visited[ref.URI]; seen {
				continue
			}
			visited[ref.URI] = struct{}{}
			next = append(next, ref.URI)
		}
		if len(next) == 0 {
			break
		}

		var posts []models.Post
		if err := tx.Where("uri IN ?", next).Find(&posts).Error; err != nil {
			return nil, errors.Wrap(err, "repair descendants: posts")
		}
		for i := range posts {
			if err := p.revalidateReply(tx, &posts[i]); err != nil {
				return nil, err
			}
			found = append(found, repairedReply{depth: depth, post: posts[i]})
		}
		frontier = next
	}
	return found, nil
}

// revalidateReply recomputes a stored reply's validity and persists the
// verdict when it changed. A flip also refreshes the parent's reply count,
// which excludes invalid replies.
func (p *postPlugin) revalidateReply(tx *gorm.DB, post *models.Post) error {
	if post.ReplyParent == nil || post.ReplyRoot == nil {
		return nil
	}
	reply := &meridian.ReplyRef{
		Root:   meridian.StrongRef{URI: *post.ReplyRoot},
		Parent: meridian.StrongRef{URI: *post.ReplyParent},
	}
	refs, err := loadReplyRefs(tx, reply)
	if err != nil {
		return err
	}
	invalid := invalidReplyRoot(reply, refs)
	if invalid == derefBool(post.InvalidReplyRoot) {
		return nil
	}
	post.InvalidReplyRoot = &invalid
	err = tx.Model(&models.Post{}).Where("uri = ?", post.URI).
		Update("invalid_reply_root", invalid).Error
	if err != nil {
		return errors.Wrap(err, "revalidate reply")
	}
	return refreshReplyCount(tx, *post.ReplyParent)
}

// repairEvents fans the repaired replies' notifications across the arriving
// post and its own ancestors, bounded by the same total depth as the direct
// walk. uppers[0] is the arriving post itself; its author is dropped later as
// a self-notification.
func repairEvents(uppers []string, descendants []repairedReply, hidden map[string]struct{}) []meridian.NotificationEvent {
	var events []meridian.NotificationEvent
	for _, d := range descendants {
		if derefBool(d.post.ViolatesThreadGate) || derefBool(d.post.InvalidReplyRoot) {
			continue
		}
		if _, ok := hidden[d.post.URI]; ok {
			continue
		}
		for height, ancestor := range uppers {
			if d.depth+height > domain.ReplyNotifDepth {
				break
			}
			events = append(events, newEvent(meridian.ActorOf(ancestor), d.post.Creator, meridian.ReasonReply, ancestor, d.post.URI, d.post.Cid, d.post.SortAt))
		}
	}
	return events
}

func (p *postPlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return retractionsFor(tx, uri.String())
}

type cascadeTarget struct {
	model any
	where string
}

// postCascade lists the derived rows removed with a post. Quotes go in both
// directions: rows where the post quotes another, and rows where other posts
// quote it, so quote counts stop referencing a post that no longer exists.
func postCascade() []cascadeTarget {
	return []cascadeTarget{
		{&models.Post{}, "uri = ?"},
		{&models.FeedItem{}, "uri = ?"},
		{&models.PostEmbedImage{}, "post_uri = ?"},
		{&models.PostEmbedExternal{}, "post_uri = ?"},
		{&models.PostEmbedRecord{}, "post_uri = ?"},
		{&models.PostEmbedVideo{}, "post_uri = ?"},
		{&models.Quote{}, "uri = ?"},
		{&models.Quote{}, "subject = ?"},
		{&models.PostAgg{}, "uri = ?"},
	}
}

// deleteRecord removes the post and its derived rows. The thread ref stays:
// surviving descendants keep their position in the hierarchy and the deleted
// post renders as a placeholder.
func (p *postPlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	rawURI := uri.String()
	for _, d := range postCascade() {
		if err := tx.Where(d.where, rawURI).Delete(d.model).Error; err != nil {
			return errors.Wrap(err, "delete post rows")
		}
	}
	return nil
}

func (p *postPlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	record, err := decodePost(raw)
	if err != nil {
		return err
	}

	if record.Reply != nil {
		if err := refreshReplyCount(tx, record.Reply.Parent.URI); err != nil {
			return err
		}
	}
	if record.Embed != nil {
		for _, variant := range record.Embed.Flatten() {
			if er, ok := variant.(meridian.EmbedRecord); ok {
				if meridian.CollectionOf(er.Record.URI) == meridian.CollectionPost {
					if err := refreshQuoteCount(tx, er.Record.URI); err != nil {
						return err
					}
				}
			}
		}
	}
	return refreshPostsCount(tx, uri.Actor)
}

// Aggregate refreshes recompute the counter from source rows in a single
// correlated-subquery upsert, which is idempotent and safe under races.

func refreshReplyCount(tx *gorm.DB, postURI string) error {
	err := tx.Exec(`
INSERT INTO post_aggs (uri, reply_count)
VALUES (?, (SELECT COUNT(*) FROM posts WHERE reply_parent = ? AND violates_thread_gate IS NOT TRUE AND invalid_reply_root IS NOT TRUE))
ON CONFLICT (uri) DO UPDATE SET reply_count = EXCLUDED.reply_count
`, postURI, postURI).Error
	return errors.Wrap(err, "refresh reply count")
}

func refreshQuoteCount(tx *gorm.DB, postURI string) error {
	err := tx.Exec(`
INSERT INTO post_aggs (uri, quote_count)
VALUES (?, (SELECT COUNT(*) FROM quotes WHERE subject = ?))
ON CONFLICT (uri) DO UPDATE SET quote_count = EXCLUDED.quote_count
`, postURI, postURI).Error
	return errors.Wrap(err, "refresh quote count")
}

func refreshPostsCount(tx *gorm.DB, did string) error {
	err := tx.Exec(`
INSERT INTO profile_aggs (did, posts_count)
VALUES (?, (SELECT COUNT(*) FROM posts WHERE creator = ?))
ON CONFLICT (did) DO UPDATE SET posts_count = EXCLUDED.posts_count
`, did, did).Error
	return errors.Wrap(err, "refresh posts count")
}
