package meridian

import "testing"

func TestParseRecordURI(t *testing.T) {
	uri, err := ParseRecordURI("mrd://did:example:alice/app.meridian.feed.post/3kab")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if uri.Actor != "did:example:alice" || uri.Collection != CollectionPost || uri.Rkey != "3kab" {
		t.Fatalf("unexpected parse: %+v", uri)
	}
	if uri.String() != "mrd://did:example:alice/app.meridian.feed.post/3kab" {
		t.Fatalf("round trip failed: %s", uri.String())
	}
}

func TestParseRecordURIRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"https://did:a/app.meridian.feed.post/1",
		"mrd://did:a",
		"mrd://did:a/app.meridian.feed.post",
		"mrd://did:a/app.meridian.feed.post/1/extra",
		"mrd:///app.meridian.feed.post/1",
	}
	for _, raw := range cases {
		if _, err := ParseRecordURI(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestActorOfToleratesGarbage(t *testing.T) {
	if got := ActorOf("not a uri"); got != "" {
		t.Fatalf("expected empty actor, got %q", got)
	}
	if got := ActorOf("mrd://did:a/app.meridian.graph.list/1"); got != "did:a" {
		t.Fatalf("expected did:a, got %q", got)
	}
}

func TestGateURIsShareRkeyWithPost(t *testing.T) {
	post := "mrd://did:a/app.meridian.feed.post/3kab"
	if got := ThreadgateURIFor(post); got != "mrd://did:a/app.meridian.feed.threadgate/3kab" {
		t.Fatalf("unexpected threadgate uri: %s", got)
	}
	if got := PostgateURIFor(post); got != "mrd://did:a/app.meridian.feed.postgate/3kab" {
		t.Fatalf("unexpected postgate uri: %s", got)
	}
	if got := ThreadgateURIFor("garbage"); got != "" {
		t.Fatalf("malformed input must yield empty uri, got %q", got)
	}
}
