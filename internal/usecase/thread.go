package usecase

import (
	"context"
	"sort"

	"github.com/meridian-social/meridian/internal/domain"
)

// ThreadSkeleton holds the walked topology around an anchor post. Ancestors
// run from the anchor's parent upward; descendants are grouped by parent.
type ThreadSkeleton struct {
	Anchor      string
	Ancestors   []string
	Descendants map[string][]string
}

type ThreadUsecase struct {
	threads  ThreadRepository
	hydrator *Hydrator
}

func NewThreadUsecase(threads ThreadRepository, hydrator *Hydrator) *ThreadUsecase {
	return &ThreadUsecase{threads: threads, hydrator: hydrator}
}

// ThreadView assembles the conversation around one post. parentHeight bounds
// the ancestor chain, depth the reply subtree; both are clamped to the
// global hierarchy bound. Deleted posts referenced by surviving replies
// render as not-found placeholders rather than breaking the tree.
func (uc *ThreadUsecase) ThreadView(ctx context.Context, uri, viewer string, parentHeight, depth int) (*domain.ThreadViewPost, error) {
	params := PipelineParams{Viewer: viewer}
	view := Compose(
		"ThreadView",
		func(ctx context.Context, params PipelineParams) (ThreadSkeleton, error) {
			return uc.skeleton(ctx, uri, parentHeight, depth)
		},
		uc.hydrate,
		uc.rules,
		uc.present,
	)
	return view(ctx, params)
}

func clampDepth(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	if n > domain.MaxHierarchyDepth {
		return domain.MaxHierarchyDepth
	}
	return n
}

func (uc *ThreadUsecase) skeleton(ctx context.Context, uri string, parentHeight, depth int) (ThreadSkeleton, error) {
	parentHeight = clampDepth(parentHeight, domain.MaxHierarchyDepth)
	depth = clampDepth(depth, 6)

	skeleton := ThreadSkeleton{
		Anchor:      uri,
		Descendants: make(map[string][]string),
	}

	// Ancestors: follow parent pointers one level at a time. The visited set
	// terminates reply cycles, which the index does not forbid.
	visited := map[string]struct{}{uri: {}}
	current := uri
	for i := 0; i < parentHeight; i++ {
		refs, err := uc.threads.RefsByURI(ctx, []string{current})
		if err != nil {
			return ThreadSkeleton{}, err
		}
		ref, ok := refs[current]
		if !ok || ref.ParentURI == "" {
			break
		}
		if _, seen := visited[ref.ParentURI]; seen {
			break
		}
		visited[ref.ParentURI] = struct{}{}
		skeleton.Ancestors = append(skeleton.Ancestors, ref.ParentURI)
		current = ref.ParentURI
	}

	// Descendants: breadth-first over child edges, one query per level.
	frontier := []string{uri}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		children, err := uc.threads.ChildrenOf(ctx, frontier)
		if err != nil {
			return ThreadSkeleton{}, err
		}
		next := make([]string, 0, len(children))
		for _, child := range children {
			if _, seen := visited[child.URI]; seen {
				continue
			}
			visited[child.URI] = struct{}{}
			skeleton.Descendants[child.ParentURI] = append(skeleton.Descendants[child.ParentURI], child.URI)
			next = append(next, child.URI)
		}
		frontier = next
	}
	return skeleton, nil
}

func (uc *ThreadUsecase) hydrate(ctx context.Context, params PipelineParams, skeleton ThreadSkeleton) (*Hydration, error) {
	req := HydrationRequest{PostURIs: []string{skeleton.Anchor}}
	req.PostURIs = append(req.PostURIs, skeleton.Ancestors...)
	for _, children := range skeleton.Descendants {
		req.PostURIs = append(req.PostURIs, children...)
	}
	req.PostURIs = dedupe(req.PostURIs)

	// The thread root is the last ancestor, or the anchor itself.
	root := skeleton.Anchor
	if len(skeleton.Ancestors) > 0 {
		root = skeleton.Ancestors[len(skeleton.Ancestors)-1]
	}
	req.RootURIs = []string{root}

	hydration, err := uc.hydrator.Hydrate(ctx, req)
	if err != nil {
		return nil, err
	}

	followup := HydrationRequest{}
	for _, uri := range req.PostURIs {
		post, ok := hydration.Posts[uri]
		if !ok {
			continue
		}
		followup.Dids = append(followup.Dids, post.Creator)
		if params.Viewer != "" {
			followup.Pairs = append(followup.Pairs, RelationshipPair{Source: params.Viewer, Target: post.Creator})
		}
	}
	second, err := uc.hydrator.Hydrate(ctx, followup)
	if err != nil {
		return nil, err
	}
	hydration.Profiles = second.Profiles
	hydration.Rels = second.Rels
	return hydration, nil
}

// rules prunes reply branches that are hidden by the root threadgate or
// gate-violating. Ancestors are never pruned here: blocked or missing
// ancestors still occupy their slot as placeholders so the chain keeps its
// shape. Presentation decides placeholder vs full view per node.
func (uc *ThreadUsecase) rules(params PipelineParams, skeleton ThreadSkeleton, hydration *Hydration) ThreadSkeleton {
	root := skeleton.Anchor
	if len(skeleton.Ancestors) > 0 {
		root = skeleton.Ancestors[len(skeleton.Ancestors)-1]
	}
	hidden := make(map[string]struct{})
	if gate, ok := hydration.Gates[root]; ok && gate.Threadgate != nil {
		for _, uri := range gate.Threadgate.HiddenReplies {
			hidden[uri] = struct{}{}
		}
	}

	for parent, children := range skeleton.Descendants {
		kept := make([]string, 0, len(children))
		for _, child := range children {
			if _, ok := hidden[child]; ok {
				continue
			}
			post, ok := hydration.Posts[child]
			if !ok {
				continue
			}
			if post.ViolatesThreadGate || post.InvalidReplyRoot {
				continue
			}
			if params.Viewer != "" {
				pair := RelationshipPair{Source: params.Viewer, Target: post.Creator}
				if hydration.Rels.Block(pair) || hydration.Rels.Muting(pair) {
					continue
				}
			}
			kept = append(kept, child)
		}
		skeleton.Descendants[parent] = kept
	}
	return skeleton
}

func (uc *ThreadUsecase) present(params PipelineParams, skeleton ThreadSkeleton, hydration *Hydration) *domain.ThreadViewPost {
	anchor := uc.node(params, skeleton, hydration, skeleton.Anchor, true)

	// Ancestor chain hangs off the anchor as nested parents.
	attach := anchor
	for _, uri := range skeleton.Ancestors {
		parent := uc.node(params, skeleton, hydration, uri, false)
		attach.Parent = parent
		attach = parent
	}
	return anchor
}

// node renders one thread position. withReplies expands the descendant map
// recursively under the node.
func (uc *ThreadUsecase) node(params PipelineParams, skeleton ThreadSkeleton, hydration *Hydration, uri string, withReplies bool) *domain.ThreadViewPost {
	out := &domain.ThreadViewPost{}

	post, ok := hydration.Posts[uri]
	if !ok {
		out.NotFound = &domain.NotFoundPost{URI: uri, NotFound: true}
		return out
	}
	if params.Viewer != "" {
		pair := RelationshipPair{Source: params.Viewer, Target: post.Creator}
		if hydration.Rels.Block(pair) {
			out.Blocked = &domain.BlockedPost{URI: uri, Author: post.Creator, Blocked: true}
			return out
		}
	}
	view := postView(params.Viewer, post, hydration)
	out.Post = &view

	if withReplies {
		children := skeleton.Descendants[uri]
		sorted := make([]string, len(children))
		copy(sorted, children)
		sort.Slice(sorted, func(i, j int) bool {
			return hydration.Posts[sorted[i]].SortAt.Before(hydration.Posts[sorted[j]].SortAt)
		})
		for _, child := range sorted {
			reply := uc.node(params, skeleton, hydration, child, true)
			out.Replies = append(out.Replies, *reply)
		}
	}
	return out
}
