package usecase

import (
	"context"

	"github.com/meridian-social/meridian/internal/domain"
)

type NotificationSkeleton struct {
	Items  []NotificationData
	Cursor string
}

type NotificationUsecase struct {
	repo     NotificationRepository
	hydrator *Hydrator

	list func(ctx context.Context, params PipelineParams) (domain.NotificationPage, error)
}

func NewNotificationUsecase(repo NotificationRepository, hydrator *Hydrator) *NotificationUsecase {
	uc := &NotificationUsecase{repo: repo, hydrator: hydrator}
	uc.list = Compose(
		"Notifications",
		uc.skeleton,
		uc.hydrate,
		uc.rules,
		uc.present,
	)
	return uc
}

// List returns one page of the viewer's notifications, newest first.
func (uc *NotificationUsecase) List(ctx context.Context, viewer string, page PageOpts) (domain.NotificationPage, error) {
	return uc.list(ctx, PipelineParams{Viewer: viewer, Page: page})
}

func (uc *NotificationUsecase) skeleton(ctx context.Context, params PipelineParams) (NotificationSkeleton, error) {
	items, cursor, err := uc.repo.Page(ctx, params.Viewer, params.Page)
	if err != nil {
		return NotificationSkeleton{}, err
	}
	return NotificationSkeleton{Items: items, Cursor: cursor}, nil
}

func (uc *NotificationUsecase) hydrate(ctx context.Context, params PipelineParams, skeleton NotificationSkeleton) (*Hydration, error) {
	req := HydrationRequest{}
	for _, item := range skeleton.Items {
		req.Dids = append(req.Dids, item.Author)
		req.Pairs = append(req.Pairs, RelationshipPair{Source: params.Viewer, Target: item.Author})
	}
	return uc.hydrator.Hydrate(ctx, req)
}

// rules drops notifications from actors the viewer has blocked or muted.
// The cursor still reflects the unfiltered batch.
func (uc *NotificationUsecase) rules(params PipelineParams, skeleton NotificationSkeleton, hydration *Hydration) NotificationSkeleton {
	kept := make([]NotificationData, 0, len(skeleton.Items))
	for _, item := range skeleton.Items {
		pair := RelationshipPair{Source: params.Viewer, Target: item.Author}
		if hydration.Rels.Block(pair) || hydration.Rels.Muting(pair) {
			continue
		}
		kept = append(kept, item)
	}
	skeleton.Items = kept
	return skeleton
}

func (uc *NotificationUsecase) present(params PipelineParams, skeleton NotificationSkeleton, hydration *Hydration) domain.NotificationPage {
	notifications := make([]domain.NotificationView, 0, len(skeleton.Items))
	for _, item := range skeleton.Items {
		author := hydration.Profiles[item.Author]
		if author.Did == "" {
			author.Did = item.Author
		}
		notifications = append(notifications, domain.NotificationView{
			ID:            item.ID,
			Author:        author,
			Reason:        item.Reason,
			ReasonSubject: item.ReasonSubject,
			SubjectURI:    item.SubjectURI,
			SubjectCid:    item.SubjectCid,
			SortAt:        item.SortAt,
		})
	}
	return domain.NotificationPage{Notifications: notifications, Cursor: skeleton.Cursor}
}
