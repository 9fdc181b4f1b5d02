package usecase

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

var relTracer = otel.Tracer("relationship")

// RelationshipPair is a directional (source, target) actor pair. Block and
// mute state is stored directionally but suppresses visibility both ways.
type RelationshipPair struct {
	Source string
	Target string
}

func (p RelationshipPair) Reverse() RelationshipPair {
	return RelationshipPair{Source: p.Target, Target: p.Source}
}

// RelationshipRow is the resolved state of one pair as returned by the
// store in a single bulk fetch.
type RelationshipRow struct {
	Source              string
	Target              string
	BlockingURI         string
	BlockingViaListURI  string
	BlockedByURI        string
	BlockedByViaListURI string
	Muting              bool
	MutingViaListURI    string
}

// RelationshipState memoizes resolved pairs. The has index records which
// pairs were actually submitted to a resolve call: state for any other pair
// is not trustworthy and Has reports false for it.
type RelationshipState struct {
	blocking        map[RelationshipPair]string
	blockingViaList map[RelationshipPair]string
	muting          map[RelationshipPair]bool
	muteList        map[RelationshipPair]string
	has             map[RelationshipPair]struct{}
}

func NewRelationshipState() *RelationshipState {
	return &RelationshipState{
		blocking:        make(map[RelationshipPair]string),
		blockingViaList: make(map[RelationshipPair]string),
		muting:          make(map[RelationshipPair]bool),
		muteList:        make(map[RelationshipPair]string),
		has:             make(map[RelationshipPair]struct{}),
	}
}

func (s *RelationshipState) add(row RelationshipRow) {
	pair := RelationshipPair{Source: row.Source, Target: row.Target}
	if row.BlockingURI != "" {
		s.blocking[pair] = row.BlockingURI
	}
	if row.BlockingViaListURI != "" {
		s.blockingViaList[pair] = row.BlockingViaListURI
	}
	if row.BlockedByURI != "" {
		s.blocking[pair.Reverse()] = row.BlockedByURI
	}
	if row.BlockedByViaListURI != "" {
		s.blockingViaList[pair.Reverse()] = row.BlockedByViaListURI
	}
	if row.Muting {
		s.muting[pair] = true
	}
	if row.MutingViaListURI != "" {
		s.muteList[pair] = row.MutingViaListURI
	}
	s.has[pair] = struct{}{}
}

// Has reports whether the pair was resolved. Callers must only trust the
// other predicates for pairs that were actually submitted.
func (s *RelationshipState) Has(pair RelationshipPair) bool {
	_, ok := s.has[pair]
	return ok
}

// Blocking returns the block (or list-block) URI if source blocks target.
func (s *RelationshipState) Blocking(pair RelationshipPair) (string, bool) {
	if uri, ok := s.blocking[pair]; ok {
		return uri, true
	}
	if uri, ok := s.blockingViaList[pair]; ok {
		return uri, true
	}
	return "", false
}

// BlockedBy is Blocking of the reversed pair.
func (s *RelationshipState) BlockedBy(pair RelationshipPair) (string, bool) {
	return s.Blocking(pair.Reverse())
}

// Block reports whether a block in either direction suppresses visibility
// between the pair.
func (s *RelationshipState) Block(pair RelationshipPair) bool {
	if _, ok := s.Blocking(pair); ok {
		return true
	}
	_, ok := s.BlockedBy(pair)
	return ok
}

// Muting reports whether source mutes target, directly or via list.
func (s *RelationshipState) Muting(pair RelationshipPair) bool {
	if s.muting[pair] {
		return true
	}
	_, ok := s.muteList[pair]
	return ok
}

// MuteList returns the list URI if the mute comes from shared list
// membership, distinct from a direct mute.
func (s *RelationshipState) MuteList(pair RelationshipPair) string {
	return s.muteList[pair]
}

// RelationshipRepository resolves a batch of pairs against the store in one
// statement.
type RelationshipRepository interface {
	BulkResolve(ctx context.Context, pairs []RelationshipPair) ([]RelationshipRow, error)
}

// RelationshipEngine resolves block/mute visibility state for batches of
// actor pairs. Resolution is incremental: pairs already present in an
// existing state are not fetched again when state is threaded through
// multiple pipeline stages.
type RelationshipEngine struct {
	repo RelationshipRepository
}

func NewRelationshipEngine(repo RelationshipRepository) *RelationshipEngine {
	return &RelationshipEngine{repo: repo}
}

func (e *RelationshipEngine) Resolve(ctx context.Context, pairs []RelationshipPair, existing *RelationshipState) (*RelationshipState, error) {
	ctx, span := relTracer.Start(ctx, "Relationship.Engine.Resolve")
	defer span.End()

	state := existing
	if state == nil {
		state = NewRelationshipState()
	}

	seen := make(map[RelationshipPair]struct{}, len(pairs))
	remaining := make([]RelationshipPair, 0, len(pairs))
	for _, pair := range pairs {
		if pair.Source == "" || pair.Target == "" || pair.Source == pair.Target {
			continue
		}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		if state.Has(pair) {
			continue
		}
		remaining = append(remaining, pair)
	}
	if len(remaining) == 0 {
		return state, nil
	}

	rows, err := e.repo.BulkResolve(ctx, remaining)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "RelationshipEngine.Resolve: bulk resolve failed")
	}
	resolved := make(map[RelationshipPair]struct{}, len(rows))
	for _, row := range rows {
		state.add(row)
		resolved[RelationshipPair{Source: row.Source, Target: row.Target}] = struct{}{}
	}
	// pairs with no facts at all still count as resolved
	for _, pair := range remaining {
		if _, ok := resolved[pair]; !ok {
			state.has[pair] = struct{}{}
		}
	}
	return state, nil
}
