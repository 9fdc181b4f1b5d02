package meridian

import (
	"encoding/json"
	"testing"
)

func TestEmbedWireRoundTrip(t *testing.T) {
	in := Embed{Value: EmbedRecordWithMedia{
		Record: EmbedRecord{Record: StrongRef{URI: "mrd://did:a/app.meridian.feed.post/1", Cid: "mzc-1"}},
		Media:  Embed{Value: EmbedImages{Images: []EmbedImage{{ImageCid: "mzc-img", Alt: "a cat"}}}},
	}}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out Embed
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	rwm, ok := out.Value.(EmbedRecordWithMedia)
	if !ok {
		t.Fatalf("expected recordWithMedia, got %T", out.Value)
	}
	if rwm.Record.Record.URI != "mrd://did:a/app.meridian.feed.post/1" {
		t.Fatalf("record ref lost: %+v", rwm.Record)
	}
	images, ok := rwm.Media.Value.(EmbedImages)
	if !ok || len(images.Images) != 1 || images.Images[0].Alt != "a cat" {
		t.Fatalf("nested media lost: %+v", rwm.Media.Value)
	}
}

func TestEmbedRejectsUnknownKind(t *testing.T) {
	var e Embed
	if err := json.Unmarshal([]byte(`{"kind":"hologram"}`), &e); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestFlattenSplitsRecordWithMedia(t *testing.T) {
	e := &Embed{Value: EmbedRecordWithMedia{
		Record: EmbedRecord{Record: StrongRef{URI: "mrd://did:a/app.meridian.feed.post/1"}},
		Media:  Embed{Value: EmbedExternal{URI: "https://example.com"}},
	}}

	parts := e.Flatten()
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if _, ok := parts[0].(EmbedRecord); !ok {
		t.Fatalf("expected record first, got %T", parts[0])
	}
	if _, ok := parts[1].(EmbedExternal); !ok {
		t.Fatalf("expected external second, got %T", parts[1])
	}

	var nilEmbed *Embed
	if got := nilEmbed.Flatten(); got != nil {
		t.Fatalf("nil embed must flatten to nothing")
	}
}

func TestThreadgateAllowNilVersusEmpty(t *testing.T) {
	var open ThreadgateRecord
	if err := json.Unmarshal([]byte(`{"post":"mrd://did:a/app.meridian.feed.post/1"}`), &open); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if open.Allow != nil {
		t.Fatalf("absent allow must stay nil")
	}

	var closed ThreadgateRecord
	if err := json.Unmarshal([]byte(`{"post":"mrd://did:a/app.meridian.feed.post/1","allow":[]}`), &closed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if closed.Allow == nil || len(closed.Allow) != 0 {
		t.Fatalf("empty allow must stay empty, not nil")
	}

	// The distinction survives a round trip.
	data, err := json.Marshal(closed)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var again ThreadgateRecord
	if err := json.Unmarshal(data, &again); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if again.Allow == nil {
		t.Fatalf("empty allow collapsed to nil after round trip")
	}
}

func TestThreadgateRuleKinds(t *testing.T) {
	rules := []ThreadgateRule{
		RuleMention{},
		RuleFollower{},
		RuleFollowing{},
		RuleList{List: "mrd://did:a/app.meridian.graph.list/friends"},
	}
	data, err := MarshalThreadgateRules(rules)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	out, err := UnmarshalThreadgateRules(data)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(out))
	}
	list, ok := out[3].(RuleList)
	if !ok || list.List != "mrd://did:a/app.meridian.graph.list/friends" {
		t.Fatalf("list rule lost its target: %+v", out[3])
	}
}
