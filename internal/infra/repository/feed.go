package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/meridian-social/meridian/internal/infra/database"
	"github.com/meridian-social/meridian/internal/infra/database/models"
	"github.com/meridian-social/meridian/internal/usecase"
)

// feedItemKeyset orders feed items by (sort_at, cid).
type feedItemKeyset struct {
	database.TimeCidKeyset
}

func newFeedItemKeyset() feedItemKeyset {
	return feedItemKeyset{database.TimeCidKeyset{
		PrimaryCol:   "feed_items.sort_at",
		SecondaryCol: "feed_items.cid",
	}}
}

func (k feedItemKeyset) Label(row models.FeedItem) database.LabeledResult {
	return k.TimeCidKeyset.Label(database.TimeCidRow{SortAt: row.SortAt, Cid: row.Cid})
}

type FeedRepository struct {
	db *gorm.DB
}

func NewFeedRepository(db *gorm.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

func (r *FeedRepository) page(ctx context.Context, base *gorm.DB, opts usecase.PageOpts) ([]usecase.FeedSkeletonItem, string, error) {
	keyset := newFeedItemKeyset()

	query, err := database.Paginate[models.FeedItem](base, keyset, database.PageOpts{
		Limit:  opts.Limit,
		Cursor: opts.Cursor,
	})
	if err != nil {
		return nil, "", err
	}

	var rows []models.FeedItem
	if err := query.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, "", errors.Wrap(err, "FeedRepository.page")
	}

	items := make([]usecase.FeedSkeletonItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, usecase.FeedSkeletonItem{
			ItemURI:    row.URI,
			PostURI:    row.PostURI,
			Type:       row.Type,
			Originator: row.OriginatorDid,
			SortAt:     row.SortAt,
			Cid:        row.Cid,
		})
	}
	return items, database.PackFromResult[models.FeedItem](keyset, rows), nil
}

// AuthorFeed pages over posts and reposts originated by one actor.
func (r *FeedRepository) AuthorFeed(ctx context.Context, actor string, opts usecase.PageOpts) ([]usecase.FeedSkeletonItem, string, error) {
	base := r.db.Model(&models.FeedItem{}).
		Where("feed_items.originator_did = ?", actor)
	return r.page(ctx, base, opts)
}

// Timeline pages over items originated by the viewer or anyone they follow.
func (r *FeedRepository) Timeline(ctx context.Context, viewer string, opts usecase.PageOpts) ([]usecase.FeedSkeletonItem, string, error) {
	base := r.db.Model(&models.FeedItem{}).
		Where("feed_items.originator_did = ? OR feed_items.originator_did IN (?)",
			viewer,
			r.db.Model(&models.Follow{}).Select("subject_did").Where("creator = ?", viewer),
		)
	return r.page(ctx, base, opts)
}

var _ usecase.FeedRepository = (*FeedRepository)(nil)
