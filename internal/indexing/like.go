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

type likePlugin struct{}

func decodeLike(raw json.RawMessage) (*meridian.LikeRecord, error) {
	var record meridian.LikeRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed like record"}
	}
	return &record, nil
}

func (p *likePlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeLike(raw)
	if err != nil {
		return err
	}
	like := models.Like{
		URI:        uri.String(),
		Cid:        cid,
		Creator:    uri.Actor,
		Subject:    record.Subject.URI,
		SubjectCid: record.Subject.Cid,
		CreatedAt:  record.CreatedAt,
		SortAt:     sortAt(record.CreatedAt, now),
	}
	return errors.Wrap(tx.Create(&like).Error, "insert like")
}

// findDuplicate enforces one like per (actor, subject).
func (p *likePlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeLike(raw)
	if err != nil {
		return "", err
	}
	var existing []models.Like
	err = tx.Where("creator = ? AND subject = ?", uri.Actor, record.Subject.URI).
		Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate like")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *likePlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	record, err := decodeLike(raw)
	if err != nil {
		return nil, err
	}
	recipient := meridian.ActorOf(record.Subject.URI)
	event := newEvent(recipient, uri.Actor, meridian.ReasonLike, record.Subject.URI, uri.String(), cid, sortAt(record.CreatedAt, now))
	return dedupeByRecipient(uri.Actor, []meridian.NotificationEvent{event}), nil
}

func (p *likePlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return retractionsFor(tx, uri.String())
}

func (p *likePlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.Like{}).Error, "delete like")
}

func (p *likePlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	record, err := decodeLike(raw)
	if err != nil {
		return err
	}
	err = tx.Exec(`
INSERT INTO post_aggs (uri, like_count)
VALUES (?, (SELECT COUNT(*) FROM likes WHERE subject = ?))
ON CONFLICT (uri) DO UPDATE SET like_count = EXCLUDED.like_count
`, record.Subject.URI, record.Subject.URI).Error
	return errors.Wrap(err, "refresh like count")
}
