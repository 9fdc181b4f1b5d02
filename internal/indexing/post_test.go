package indexing

import (
	"testing"
	"time"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/domain"
	"github.com/meridian-social/meridian/internal/infra/database/models"
)

func TestSortAtClampsFutureTimestamps(t *testing.T) {
	indexed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	past := indexed.Add(-time.Hour)
	if got := sortAt(past, indexed); !got.Equal(past) {
		t.Fatalf("past createdAt must win, got %v", got)
	}

	future := indexed.Add(time.Hour)
	if got := sortAt(future, indexed); !got.Equal(indexed) {
		t.Fatalf("future createdAt must clamp to indexing time, got %v", got)
	}
}

func strptr(s string) *string { return &s }

func boolptr(b bool) *bool { return &b }

func TestInvalidReplyRootDetectsMismatch(t *testing.T) {
	reply := &meridian.ReplyRef{
		Root:   meridian.StrongRef{URI: "mrd://did:a/app.meridian.feed.post/claimed-root"},
		Parent: meridian.StrongRef{URI: "mrd://did:b/app.meridian.feed.post/parent"},
	}

	// Parent belongs to a different thread than the reply claims.
	refs := &replyRefs{parent: &models.Post{
		URI:       "mrd://did:b/app.meridian.feed.post/parent",
		ReplyRoot: strptr("mrd://did:c/app.meridian.feed.post/actual-root"),
	}}
	if !invalidReplyRoot(reply, refs) {
		t.Fatalf("expected mismatch to be invalid")
	}

	refs.parent.ReplyRoot = strptr("mrd://did:a/app.meridian.feed.post/claimed-root")
	if invalidReplyRoot(reply, refs) {
		t.Fatalf("matching root must be valid")
	}
}

func TestInvalidReplyRootMissingParentIsInvalid(t *testing.T) {
	reply := &meridian.ReplyRef{
		Root:   meridian.StrongRef{URI: "mrd://did:a/app.meridian.feed.post/root"},
		Parent: meridian.StrongRef{URI: "mrd://did:b/app.meridian.feed.post/parent"},
	}
	// Out-of-order arrival: invalid until the parent shows up and the reply
	// is revalidated.
	if !invalidReplyRoot(reply, &replyRefs{}) {
		t.Fatalf("missing parent must be invalid")
	}
}

func TestInvalidReplyRootInheritsParentInvalidity(t *testing.T) {
	reply := &meridian.ReplyRef{
		Root:   meridian.StrongRef{URI: "mrd://did:a/app.meridian.feed.post/root"},
		Parent: meridian.StrongRef{URI: "mrd://did:b/app.meridian.feed.post/parent"},
	}
	refs := &replyRefs{parent: &models.Post{
		URI:              "mrd://did:b/app.meridian.feed.post/parent",
		ReplyRoot:        strptr("mrd://did:a/app.meridian.feed.post/root"),
		InvalidReplyRoot: boolptr(true),
	}}
	if !invalidReplyRoot(reply, refs) {
		t.Fatalf("reply under an invalid parent must be invalid")
	}

	refs.parent.InvalidReplyRoot = nil
	if invalidReplyRoot(reply, refs) {
		t.Fatalf("same reply under a valid parent must be valid")
	}
}

func TestInvalidReplyRootTopLevelParent(t *testing.T) {
	// Replying directly under a top-level post: the parent is the root.
	reply := &meridian.ReplyRef{
		Root:   meridian.StrongRef{URI: "mrd://did:a/app.meridian.feed.post/root"},
		Parent: meridian.StrongRef{URI: "mrd://did:a/app.meridian.feed.post/root"},
	}
	refs := &replyRefs{parent: &models.Post{
		URI: "mrd://did:a/app.meridian.feed.post/root",
	}}
	if invalidReplyRoot(reply, refs) {
		t.Fatalf("parent that is itself the root must be valid")
	}

	reply.Root.URI = "mrd://did:a/app.meridian.feed.post/other"
	if !invalidReplyRoot(reply, refs) {
		t.Fatalf("claimed root other than the top-level parent must be invalid")
	}
}

func TestThreadgateNilAllowPermitsEveryone(t *testing.T) {
	gate := &meridian.ThreadgateRecord{Post: "mrd://did:a/app.meridian.feed.post/1"}
	facts := gateFacts{rootAuthor: "did:a", replyAuthor: "did:b"}
	if threadgateViolates(gate, facts) {
		t.Fatalf("nil allow list must permit everyone")
	}
}

func TestThreadgateEmptyAllowPermitsNobody(t *testing.T) {
	gate := &meridian.ThreadgateRecord{
		Post:  "mrd://did:a/app.meridian.feed.post/1",
		Allow: []meridian.ThreadgateRule{},
	}
	facts := gateFacts{rootAuthor: "did:a", replyAuthor: "did:b"}
	if !threadgateViolates(gate, facts) {
		t.Fatalf("empty allow list must reject everyone but the author")
	}
}

func TestThreadgateRootAuthorAlwaysAllowed(t *testing.T) {
	gate := &meridian.ThreadgateRecord{
		Post:  "mrd://did:a/app.meridian.feed.post/1",
		Allow: []meridian.ThreadgateRule{},
	}
	facts := gateFacts{rootAuthor: "did:a", replyAuthor: "did:a"}
	if threadgateViolates(gate, facts) {
		t.Fatalf("root author must always pass their own gate")
	}
}

func TestThreadgateMentionRule(t *testing.T) {
	gate := &meridian.ThreadgateRecord{
		Post:  "mrd://did:a/app.meridian.feed.post/1",
		Allow: []meridian.ThreadgateRule{meridian.RuleMention{}},
	}

	mentioned := gateFacts{
		rootAuthor:   "did:a",
		replyAuthor:  "did:b",
		rootMentions: map[string]struct{}{"did:b": {}},
	}
	if threadgateViolates(gate, mentioned) {
		t.Fatalf("mentioned actor must pass")
	}

	stranger := gateFacts{rootAuthor: "did:a", replyAuthor: "did:c", rootMentions: map[string]struct{}{"did:b": {}}}
	if !threadgateViolates(gate, stranger) {
		t.Fatalf("unmentioned actor must violate")
	}
}

func TestThreadgateRulesAreDisjunctive(t *testing.T) {
	gate := &meridian.ThreadgateRecord{
		Post: "mrd://did:a/app.meridian.feed.post/1",
		Allow: []meridian.ThreadgateRule{
			meridian.RuleFollower{},
			meridian.RuleList{List: "mrd://did:a/app.meridian.graph.list/friends"},
		},
	}

	// Fails the follower rule but passes the list rule.
	facts := gateFacts{
		rootAuthor:  "did:a",
		replyAuthor: "did:b",
		listMember:  map[string]bool{"mrd://did:a/app.meridian.graph.list/friends": true},
	}
	if threadgateViolates(gate, facts) {
		t.Fatalf("any matching rule must permit the reply")
	}
}

func TestThreadgateFollowingRule(t *testing.T) {
	gate := &meridian.ThreadgateRecord{
		Post:  "mrd://did:a/app.meridian.feed.post/1",
		Allow: []meridian.ThreadgateRule{meridian.RuleFollowing{}},
	}

	followed := gateFacts{rootAuthor: "did:a", replyAuthor: "did:b", rootFollows: true}
	if threadgateViolates(gate, followed) {
		t.Fatalf("actor the root author follows must pass")
	}

	stranger := gateFacts{rootAuthor: "did:a", replyAuthor: "did:b"}
	if !threadgateViolates(gate, stranger) {
		t.Fatalf("stranger must violate a following-only gate")
	}
}

func TestRepairEventsNotifyFullAncestorChain(t *testing.T) {
	// Thread grand <- mid <- leaf indexed out of order as grand, leaf, mid.
	// When mid arrives the repair walk finds leaf one level down; both mid's
	// and grand's authors must see leaf's reply, exactly as in-order indexing
	// would have produced.
	grand := "mrd://did:g/app.meridian.feed.post/root"
	mid := "mrd://did:m/app.meridian.feed.post/mid"
	leaf := models.Post{
		URI:     "mrd://did:l/app.meridian.feed.post/leaf",
		Cid:     "mzc-leaf",
		Creator: "did:l",
		SortAt:  time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	events := repairEvents([]string{mid, grand}, []repairedReply{{depth: 1, post: leaf}}, nil)

	recipients := make(map[string]meridian.NotificationEvent, len(events))
	for _, event := range events {
		recipients[event.Recipient] = event
	}
	for _, did := range []string{"did:m", "did:g"} {
		event, ok := recipients[did]
		if !ok {
			t.Fatalf("expected repair to notify %s, got %v", did, recipients)
		}
		if event.Author != "did:l" || event.SubjectURI != leaf.URI {
			t.Fatalf("repair event must carry the reply, got %+v", event)
		}
		if event.Reason != meridian.ReasonReply {
			t.Fatalf("expected reply reason, got %v", event.Reason)
		}
	}

	// The arriving post's own author drops out as a self-notification, the
	// upper ancestor survives.
	out := dedupeByRecipient("did:m", events)
	if len(out) != 1 || out[0].Recipient != "did:g" {
		t.Fatalf("expected only the upper ancestor after dedupe, got %+v", out)
	}
}

func TestRepairEventsHonorDepthBound(t *testing.T) {
	uppers := []string{
		"mrd://did:a/app.meridian.feed.post/0",
		"mrd://did:b/app.meridian.feed.post/1",
		"mrd://did:c/app.meridian.feed.post/2",
	}
	deep := repairedReply{
		depth: domain.ReplyNotifDepth,
		post:  models.Post{URI: "mrd://did:d/app.meridian.feed.post/deep", Creator: "did:d"},
	}

	events := repairEvents(uppers, []repairedReply{deep}, nil)
	if len(events) != 1 || events[0].Recipient != "did:a" {
		t.Fatalf("descendant at the depth bound must only reach the arriving post, got %+v", events)
	}
}

func TestRepairEventsSkipInvalidAndHidden(t *testing.T) {
	upper := []string{"mrd://did:a/app.meridian.feed.post/root"}
	hiddenURI := "mrd://did:h/app.meridian.feed.post/hidden"
	descendants := []repairedReply{
		{depth: 1, post: models.Post{URI: "mrd://did:b/app.meridian.feed.post/bad", Creator: "did:b", InvalidReplyRoot: boolptr(true)}},
		{depth: 1, post: models.Post{URI: "mrd://did:c/app.meridian.feed.post/gated", Creator: "did:c", ViolatesThreadGate: boolptr(true)}},
		{depth: 1, post: models.Post{URI: hiddenURI, Creator: "did:h"}},
		{depth: 1, post: models.Post{URI: "mrd://did:d/app.meridian.feed.post/ok", Creator: "did:d"}},
	}

	events := repairEvents(upper, descendants, map[string]struct{}{hiddenURI: {}})
	if len(events) != 1 || events[0].Author != "did:d" {
		t.Fatalf("only the clean reply may notify, got %+v", events)
	}
}

func TestPostCascadeRemovesQuotesBothWays(t *testing.T) {
	asQuoter, asSubject := false, false
	for _, target := range postCascade() {
		if _, ok := target.model.(*models.Quote); !ok {
			continue
		}
		switch target.where {
		case "uri = ?":
			asQuoter = true
		case "subject = ?":
			asSubject = true
		}
	}
	if !asQuoter || !asSubject {
		t.Fatalf("quote rows must be removed in both directions, quoter=%v subject=%v", asQuoter, asSubject)
	}
}

func TestDedupeByRecipientDropsSelfAndRepeats(t *testing.T) {
	when := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	events := []meridian.NotificationEvent{
		newEvent("did:a", "did:author", meridian.ReasonMention, "", "uri1", "cid1", when),
		newEvent("did:a", "did:author", meridian.ReasonMention, "", "uri1", "cid1", when),
		newEvent("did:author", "did:author", meridian.ReasonReply, "", "uri1", "cid1", when),
		newEvent("did:a", "did:author", meridian.ReasonReply, "", "uri1", "cid1", when),
		newEvent("", "did:author", meridian.ReasonReply, "", "uri1", "cid1", when),
	}

	out := dedupeByRecipient("did:author", events)
	if len(out) != 2 {
		t.Fatalf("expected 2 events, got %d", len(out))
	}
	if out[0].Reason != meridian.ReasonMention || out[1].Reason != meridian.ReasonReply {
		t.Fatalf("expected first event per (recipient, reason) kept")
	}
	for _, event := range out {
		if event.Recipient == "did:author" || event.Recipient == "" {
			t.Fatalf("self and empty recipients must be dropped")
		}
	}
}
