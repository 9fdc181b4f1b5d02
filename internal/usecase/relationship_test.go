package usecase

import (
	"context"
	"testing"
)

type mockRelationshipRepo struct {
	rows  []RelationshipRow
	calls [][]RelationshipPair
}

func (m *mockRelationshipRepo) BulkResolve(ctx context.Context, pairs []RelationshipPair) ([]RelationshipRow, error) {
	m.calls = append(m.calls, pairs)
	var out []RelationshipRow
	for _, pair := range pairs {
		for _, row := range m.rows {
			if row.Source == pair.Source && row.Target == pair.Target {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func TestRelationshipBlockIsSymmetricInEffect(t *testing.T) {
	repo := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:a", Target: "did:b", BlockingURI: "mrd://did:a/app.meridian.graph.block/1"},
	}}
	engine := NewRelationshipEngine(repo)

	pair := RelationshipPair{Source: "did:a", Target: "did:b"}
	state, err := engine.Resolve(context.Background(), []RelationshipPair{pair}, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if !state.Block(pair) {
		t.Fatalf("expected block on forward pair")
	}
	if _, ok := state.Blocking(pair); !ok {
		t.Fatalf("expected blocking on forward pair")
	}
	if _, ok := state.BlockedBy(pair.Reverse()); !ok {
		t.Fatalf("expected reversed pair to report blocked-by")
	}
}

func TestRelationshipBlockedByViaReverseRow(t *testing.T) {
	repo := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:a", Target: "did:b", BlockedByURI: "mrd://did:b/app.meridian.graph.block/9"},
	}}
	engine := NewRelationshipEngine(repo)

	pair := RelationshipPair{Source: "did:a", Target: "did:b"}
	state, err := engine.Resolve(context.Background(), []RelationshipPair{pair}, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if _, ok := state.Blocking(pair); ok {
		t.Fatalf("a does not block b")
	}
	if _, ok := state.BlockedBy(pair); !ok {
		t.Fatalf("expected blocked-by for a against b")
	}
	if !state.Block(pair) {
		t.Fatalf("block suppresses visibility in both directions")
	}
}

func TestRelationshipResolveMemoizes(t *testing.T) {
	repo := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:a", Target: "did:b", Muting: true},
	}}
	engine := NewRelationshipEngine(repo)

	pair := RelationshipPair{Source: "did:a", Target: "did:b"}
	state, err := engine.Resolve(context.Background(), []RelationshipPair{pair}, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	state, err = engine.Resolve(context.Background(), []RelationshipPair{pair}, state)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}

	if len(repo.calls) != 1 {
		t.Fatalf("expected one bulk fetch, got %d", len(repo.calls))
	}
	if !state.Muting(pair) {
		t.Fatalf("expected mute to survive the second resolve")
	}
}

func TestRelationshipFactlessPairsAreResolved(t *testing.T) {
	repo := &mockRelationshipRepo{}
	engine := NewRelationshipEngine(repo)

	pair := RelationshipPair{Source: "did:a", Target: "did:b"}
	state, err := engine.Resolve(context.Background(), []RelationshipPair{pair}, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !state.Has(pair) {
		t.Fatalf("pair with no facts must still count as resolved")
	}

	if _, err := engine.Resolve(context.Background(), []RelationshipPair{pair}, state); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if len(repo.calls) != 1 {
		t.Fatalf("factless pair must not be refetched, got %d calls", len(repo.calls))
	}
}

func TestRelationshipSkipsSelfAndEmptyPairs(t *testing.T) {
	repo := &mockRelationshipRepo{}
	engine := NewRelationshipEngine(repo)

	pairs := []RelationshipPair{
		{Source: "did:a", Target: "did:a"},
		{Source: "", Target: "did:b"},
		{Source: "did:a", Target: ""},
	}
	if _, err := engine.Resolve(context.Background(), pairs, nil); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("expected no bulk fetch for degenerate pairs")
	}
}

func TestRelationshipMuteViaList(t *testing.T) {
	repo := &mockRelationshipRepo{rows: []RelationshipRow{
		{Source: "did:a", Target: "did:b", MutingViaListURI: "mrd://did:a/app.meridian.graph.list/spam"},
	}}
	engine := NewRelationshipEngine(repo)

	pair := RelationshipPair{Source: "did:a", Target: "did:b"}
	state, err := engine.Resolve(context.Background(), []RelationshipPair{pair}, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if !state.Muting(pair) {
		t.Fatalf("list mute must count as muting")
	}
	if state.MuteList(pair) != "mrd://did:a/app.meridian.graph.list/spam" {
		t.Fatalf("expected the mute list uri, got %q", state.MuteList(pair))
	}
}
