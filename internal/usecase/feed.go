package usecase

import (
	"context"

	"github.com/meridian-social/meridian/internal/domain"
)

// FeedSkeleton is the unhydrated page spine. The cursor is fixed at skeleton
// time from the raw batch boundary; rules may drop items but never move it.
type FeedSkeleton struct {
	Items  []FeedSkeletonItem
	Cursor string
}

type FeedUsecase struct {
	repo     FeedRepository
	hydrator *Hydrator

	timeline func(ctx context.Context, params PipelineParams) (domain.FeedPage, error)
}

func NewFeedUsecase(repo FeedRepository, hydrator *Hydrator) *FeedUsecase {
	uc := &FeedUsecase{repo: repo, hydrator: hydrator}
	uc.timeline = Compose(
		"Timeline",
		uc.timelineSkeleton,
		uc.hydrate,
		feedRules(true),
		uc.present,
	)
	return uc
}

// AuthorFeed returns one page of an actor's posts and reposts. The skeleton
// closure is built per call because the subject actor is not part of the
// shared pipeline params.
func (uc *FeedUsecase) AuthorFeed(ctx context.Context, actor string, viewer string, page PageOpts) (domain.FeedPage, error) {
	params := PipelineParams{Viewer: viewer, Page: page}
	view := Compose(
		"AuthorFeed",
		func(ctx context.Context, params PipelineParams) (FeedSkeleton, error) {
			items, cursor, err := uc.repo.AuthorFeed(ctx, actor, params.Page)
			if err != nil {
				return FeedSkeleton{}, err
			}
			return FeedSkeleton{Items: items, Cursor: cursor}, nil
		},
		uc.hydrate,
		feedRules(false),
		uc.present,
	)
	return view(ctx, params)
}

// Timeline returns one page of the viewer's following timeline.
func (uc *FeedUsecase) Timeline(ctx context.Context, viewer string, page PageOpts) (domain.FeedPage, error) {
	return uc.timeline(ctx, PipelineParams{Viewer: viewer, Page: page})
}

func (uc *FeedUsecase) timelineSkeleton(ctx context.Context, params PipelineParams) (FeedSkeleton, error) {
	items, cursor, err := uc.repo.Timeline(ctx, params.Viewer, params.Page)
	if err != nil {
		return FeedSkeleton{}, err
	}
	return FeedSkeleton{Items: items, Cursor: cursor}, nil
}

func (uc *FeedUsecase) hydrate(ctx context.Context, params PipelineParams, skeleton FeedSkeleton) (*Hydration, error) {
	req := HydrationRequest{}
	for _, item := range skeleton.Items {
		req.PostURIs = append(req.PostURIs, item.PostURI)
		if params.Viewer != "" {
			req.Pairs = append(req.Pairs, RelationshipPair{Source: params.Viewer, Target: item.Originator})
		}
	}
	hydration, err := uc.hydrator.Hydrate(ctx, req)
	if err != nil {
		return nil, err
	}

	// Post authors differ from originators for reposts and are only known
	// after the posts load; a second pass fills profiles and pairs for them.
	followup := HydrationRequest{}
	for _, item := range skeleton.Items {
		followup.Dids = append(followup.Dids, item.Originator)
		post, ok := hydration.Posts[item.PostURI]
		if !ok {
			continue
		}
		followup.Dids = append(followup.Dids, post.Creator)
		if params.Viewer != "" && post.Creator != item.Originator {
			followup.Pairs = append(followup.Pairs, RelationshipPair{Source: params.Viewer, Target: post.Creator})
		}
		if post.Record != nil && post.Record.Reply != nil {
			followup.RootURIs = append(followup.RootURIs, post.Record.Reply.Root.URI)
		}
	}
	profilesReq := followup
	profilesReq.Pairs = nil
	second, err := uc.hydrator.Hydrate(ctx, profilesReq)
	if err != nil {
		return nil, err
	}
	hydration.Profiles = second.Profiles
	hydration.Gates = second.Gates
	hydration.Rels, err = uc.hydrator.rels.Resolve(ctx, followup.Pairs, hydration.Rels)
	if err != nil {
		return nil, err
	}
	return hydration, nil
}

// feedRules drops invisible items. Blocks hide in both directions on every
// feed; mutes only filter aggregated surfaces like the timeline, never an
// author feed the viewer asked for explicitly.
func feedRules(applyMutes bool) RulesFn[FeedSkeleton, *Hydration] {
	return func(params PipelineParams, skeleton FeedSkeleton, hydration *Hydration) FeedSkeleton {
		kept := make([]FeedSkeletonItem, 0, len(skeleton.Items))
		for _, item := range skeleton.Items {
			post, ok := hydration.Posts[item.PostURI]
			if !ok {
				continue
			}
			if post.ViolatesThreadGate || post.InvalidReplyRoot {
				continue
			}
			if params.Viewer != "" {
				hidden := false
				for _, did := range []string{item.Originator, post.Creator} {
					pair := RelationshipPair{Source: params.Viewer, Target: did}
					if hydration.Rels.Block(pair) {
						hidden = true
						break
					}
					if applyMutes && did != params.Viewer && hydration.Rels.Muting(pair) {
						hidden = true
						break
					}
				}
				if hidden {
					continue
				}
			}
			kept = append(kept, item)
		}
		skeleton.Items = kept
		return skeleton
	}
}

func (uc *FeedUsecase) present(params PipelineParams, skeleton FeedSkeleton, hydration *Hydration) domain.FeedPage {
	feed := make([]domain.FeedViewPost, 0, len(skeleton.Items))
	for _, item := range skeleton.Items {
		post, ok := hydration.Posts[item.PostURI]
		if !ok {
			continue
		}
		view := postView(params.Viewer, post, hydration)
		entry := domain.FeedViewPost{Post: view}
		if item.Type == FeedItemRepost {
			by := hydration.Profiles[item.Originator]
			by.Viewer = hydration.ViewerStateFor(params.Viewer, item.Originator)
			entry.Reason = &domain.ReasonRepost{By: by, IndexedAt: item.SortAt}
		}
		feed = append(feed, entry)
	}
	return domain.FeedPage{Feed: feed, Cursor: skeleton.Cursor}
}

func postView(viewer string, post PostData, hydration *Hydration) domain.PostView {
	author := hydration.Profiles[post.Creator]
	if author.Did == "" {
		author.Did = post.Creator
	}
	author.Viewer = hydration.ViewerStateFor(viewer, post.Creator)
	agg := hydration.Aggs[post.URI]
	return domain.PostView{
		URI:         post.URI,
		Cid:         post.Cid,
		Author:      author,
		Record:      post.Record,
		ReplyCount:  agg.ReplyCount,
		RepostCount: agg.RepostCount,
		LikeCount:   agg.LikeCount,
		QuoteCount:  agg.QuoteCount,
		IndexedAt:   post.IndexedAt,
	}
}
