package indexing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/domain"
	"github.com/meridian-social/meridian/internal/infra/database/models"
)

type repostPlugin struct{}

func decodeRepost(raw json.RawMessage) (*meridian.RepostRecord, error) {
	var record meridian.RepostRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed repost record"}
	}
	return &record, nil
}

func (p *repostPlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeRepost(raw)
	if err != nil {
		return err
	}
	sort := sortAt(record.CreatedAt, now)

	repost := models.Repost{
		URI:        uri.String(),
		Cid:        cid,
		Creator:    uri.Actor,
		Subject:    record.Subject.URI,
		SubjectCid: record.Subject.Cid,
		CreatedAt:  record.CreatedAt,
		SortAt:     sort,
	}
	if err := tx.Create(&repost).Error; err != nil {
		return errors.Wrap(err, "insert repost")
	}

	item := models.FeedItem{
		URI:           uri.String(),
		Type:          models.FeedItemRepost,
		Cid:           cid,
		PostURI:       record.Subject.URI,
		OriginatorDid: uri.Actor,
		SortAt:        sort,
	}
	if err := tx.Create(&item).Error; err != nil {
		return errors.Wrap(err, "insert repost feed item")
	}
	return nil
}

// findDuplicate enforces one repost per (actor, subject). A second repost of
// the same post under a new URI loses to the indexed one.
func (p *repostPlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeRepost(raw)
	if err != nil {
		return "", err
	}
	var existing []models.Repost
	err = tx.Where("creator = ? AND subject = ?", uri.Actor, record.Subject.URI).
		Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate repost")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *repostPlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	record, err := decodeRepost(raw)
	if err != nil {
		return nil, err
	}
	recipient := meridian.ActorOf(record.Subject.URI)
	event := newEvent(recipient, uri.Actor, meridian.ReasonRepost, record.Subject.URI, uri.String(), cid, sortAt(record.CreatedAt, now))
	return dedupeByRecipient(uri.Actor, []meridian.NotificationEvent{event}), nil
}

func (p *repostPlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return retractionsFor(tx, uri.String())
}

func (p *repostPlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	if err := tx.Where("uri = ?", uri.String()).Delete(&models.Repost{}).Error; err != nil {
		return errors.Wrap(err, "delete repost")
	}
	if err := tx.Where("uri = ?", uri.String()).Delete(&models.FeedItem{}).Error; err != nil {
		return errors.Wrap(err, "delete repost feed item")
	}
	return nil
}

func (p *repostPlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	record, err := decodeRepost(raw)
	if err != nil {
		return err
	}
	err = tx.Exec(`
INSERT INTO post_aggs (uri, repost_count)
VALUES (?, (SELECT COUNT(*) FROM reposts WHERE subject = ?))
ON CONFLICT (uri) DO UPDATE SET repost_count = EXCLUDED.repost_count
`, record.Subject.URI, record.Subject.URI).Error
	return errors.Wrap(err, "refresh repost count")
}
