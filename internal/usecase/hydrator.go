package usecase

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-social/meridian/internal/domain"
)

var hydratorTracer = otel.Tracer("hydrator")

// Hydration carries everything a rules or presentation stage may need,
// bulk-loaded in one pass. Maps are keyed by URI or did; absence means the
// referenced entity is not indexed.
type Hydration struct {
	Posts    map[string]PostData
	Aggs     map[string]PostAggData
	Gates    map[string]GateData
	Profiles map[string]domain.ProfileView
	Rels     *RelationshipState
}

// Hydrator bulk-loads view state. Gate records are additionally held in a
// short-lived in-process cache since thread roots repeat heavily across
// requests.
type Hydrator struct {
	posts     PostRepository
	profiles  ProfileRepository
	rels      *RelationshipEngine
	gateCache *gocache.Cache
}

func NewHydrator(posts PostRepository, profiles ProfileRepository, rels *RelationshipEngine) *Hydrator {
	return &Hydrator{
		posts:     posts,
		profiles:  profiles,
		rels:      rels,
		gateCache: gocache.New(30*time.Second, 5*time.Minute),
	}
}

// HydrationRequest names what a skeleton references. Pair lists are
// (viewer, other) pairs to resolve relationship state for.
type HydrationRequest struct {
	PostURIs []string
	RootURIs []string
	Dids     []string
	Pairs    []RelationshipPair
}

func (h *Hydrator) Hydrate(ctx context.Context, req HydrationRequest) (*Hydration, error) {
	ctx, span := hydratorTracer.Start(ctx, "Hydrator.Hydrate")
	defer span.End()

	out := &Hydration{}
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		posts, err := h.posts.PostsByURI(gctx, req.PostURIs)
		if err != nil {
			return errors.Wrap(err, "hydrate posts")
		}
		out.Posts = posts
		return nil
	})
	group.Go(func() error {
		aggs, err := h.posts.AggsByURI(gctx, req.PostURIs)
		if err != nil {
			return errors.Wrap(err, "hydrate aggregates")
		}
		out.Aggs = aggs
		return nil
	})
	group.Go(func() error {
		gates, err := h.gates(gctx, req.RootURIs)
		if err != nil {
			return errors.Wrap(err, "hydrate gates")
		}
		out.Gates = gates
		return nil
	})
	group.Go(func() error {
		profiles, err := h.profiles.ProfilesByDid(gctx, dedupe(req.Dids))
		if err != nil {
			return errors.Wrap(err, "hydrate profiles")
		}
		out.Profiles = profiles
		return nil
	})
	group.Go(func() error {
		rels, err := h.rels.Resolve(gctx, req.Pairs, nil)
		if err != nil {
			return errors.Wrap(err, "hydrate relationships")
		}
		out.Rels = rels
		return nil
	})

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

func (h *Hydrator) gates(ctx context.Context, rootURIs []string) (map[string]GateData, error) {
	out := make(map[string]GateData, len(rootURIs))
	missing := make([]string, 0, len(rootURIs))
	for _, uri := range dedupe(rootURIs) {
		if cached, ok := h.gateCache.Get(uri); ok {
			out[uri] = cached.(GateData)
			continue
		}
		missing = append(missing, uri)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := h.posts.GatesByRootURI(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, uri := range missing {
		// Absent gates are cached too, as the zero GateData.
		gate := fetched[uri]
		out[uri] = gate
		h.gateCache.Set(uri, gate, gocache.DefaultExpiration)
	}
	return out, nil
}

// ViewerStateFor derives the viewer relationship block for a profile view.
// Returns nil when there is nothing to report or no viewer.
func (h *Hydration) ViewerStateFor(viewer, did string) *domain.ViewerState {
	if viewer == "" || viewer == did || h.Rels == nil {
		return nil
	}
	pair := RelationshipPair{Source: viewer, Target: did}
	state := domain.ViewerState{}
	any := false
	if h.Rels.Muting(pair) {
		state.Muted = true
		state.MutedByList = h.Rels.MuteList(pair)
		any = true
	}
	if uri, ok := h.Rels.Blocking(pair); ok {
		state.Blocking = uri
		any = true
	}
	if _, ok := h.Rels.BlockedBy(pair); ok {
		state.BlockedBy = true
		any = true
	}
	if !any {
		return nil
	}
	return &state
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
