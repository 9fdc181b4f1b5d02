package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/infra/database/models"
	"github.com/meridian-social/meridian/internal/usecase"
)

type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

func derefFlag(b *bool) bool {
	return b != nil && *b
}

// PostsByURI bulk-loads indexed posts together with their parsed records.
// Posts whose stored record fails to parse are skipped rather than failing
// the whole batch.
func (r *PostRepository) PostsByURI(ctx context.Context, uris []string) (map[string]usecase.PostData, error) {
	out := make(map[string]usecase.PostData, len(uris))
	if len(uris) == 0 {
		return out, nil
	}

	var posts []models.Post
	err := r.db.WithContext(ctx).Where("uri IN ?", uris).Find(&posts).Error
	if err != nil {
		return nil, errors.Wrap(err, "PostRepository.PostsByURI")
	}

	records, err := r.recordsByURI(ctx, uris)
	if err != nil {
		return nil, err
	}

	for _, post := range posts {
		raw, ok := records[post.URI]
		if !ok {
			continue
		}
		var record meridian.PostRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		out[post.URI] = usecase.PostData{
			URI:                    post.URI,
			Cid:                    post.Cid,
			Creator:                post.Creator,
			Record:                 &record,
			SortAt:                 post.SortAt,
			IndexedAt:              post.IndexedAt,
			InvalidReplyRoot:       derefFlag(post.InvalidReplyRoot),
			ViolatesThreadGate:     derefFlag(post.ViolatesThreadGate),
			ViolatesEmbeddingRules: derefFlag(post.ViolatesEmbeddingRules),
		}
	}
	return out, nil
}

func (r *PostRepository) AggsByURI(ctx context.Context, uris []string) (map[string]usecase.PostAggData, error) {
	out := make(map[string]usecase.PostAggData, len(uris))
	if len(uris) == 0 {
		return out, nil
	}

	var aggs []models.PostAgg
	err := r.db.WithContext(ctx).Where("uri IN ?", uris).Find(&aggs).Error
	if err != nil {
		return nil, errors.Wrap(err, "PostRepository.AggsByURI")
	}
	for _, agg := range aggs {
		out[agg.URI] = usecase.PostAggData{
			LikeCount:   agg.LikeCount,
			ReplyCount:  agg.ReplyCount,
			RepostCount: agg.RepostCount,
			QuoteCount:  agg.QuoteCount,
		}
	}
	return out, nil
}

// GatesByRootURI loads thread and post gates keyed by the post they govern.
func (r *PostRepository) GatesByRootURI(ctx context.Context, rootURIs []string) (map[string]usecase.GateData, error) {
	out := make(map[string]usecase.GateData, len(rootURIs))
	if len(rootURIs) == 0 {
		return out, nil
	}

	var threadgates []models.Threadgate
	err := r.db.WithContext(ctx).Where("post_uri IN ?", rootURIs).Find(&threadgates).Error
	if err != nil {
		return nil, errors.Wrap(err, "PostRepository.GatesByRootURI: threadgates")
	}
	var postgates []models.Postgate
	err = r.db.WithContext(ctx).Where("post_uri IN ?", rootURIs).Find(&postgates).Error
	if err != nil {
		return nil, errors.Wrap(err, "PostRepository.GatesByRootURI: postgates")
	}

	gateURIs := make([]string, 0, len(threadgates)+len(postgates))
	for _, tg := range threadgates {
		gateURIs = append(gateURIs, tg.URI)
	}
	for _, pg := range postgates {
		gateURIs = append(gateURIs, pg.URI)
	}
	records, err := r.recordsByURI(ctx, gateURIs)
	if err != nil {
		return nil, err
	}

	for _, tg := range threadgates {
		raw, ok := records[tg.URI]
		if !ok {
			continue
		}
		var record meridian.ThreadgateRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		entry := out[tg.PostURI]
		entry.ThreadgateURI = tg.URI
		entry.Threadgate = &record
		out[tg.PostURI] = entry
	}
	for _, pg := range postgates {
		raw, ok := records[pg.URI]
		if !ok {
			continue
		}
		var record meridian.PostgateRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		entry := out[pg.PostURI]
		entry.PostgateURI = pg.URI
		entry.Postgate = &record
		out[pg.PostURI] = entry
	}
	return out, nil
}

func (r *PostRepository) recordsByURI(ctx context.Context, uris []string) (map[string]string, error) {
	out := make(map[string]string, len(uris))
	if len(uris) == 0 {
		return out, nil
	}
	var records []models.Record
	err := r.db.WithContext(ctx).Where("uri IN ?", uris).Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "PostRepository.recordsByURI")
	}
	for _, record := range records {
		out[record.URI] = record.JSON
	}
	return out, nil
}

var _ usecase.PostRepository = (*PostRepository)(nil)
