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

// Gate plugins. A gate shares its rkey with the post it governs and must be
// written by the post's author; gates over someone else's post are rejected.

type threadgatePlugin struct{}

func decodeThreadgate(raw json.RawMessage) (*meridian.ThreadgateRecord, error) {
	var record meridian.ThreadgateRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed threadgate record"}
	}
	return &record, nil
}

func (p *threadgatePlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeThreadgate(raw)
	if err != nil {
		return err
	}
	post, err := meridian.ParseRecordURI(record.Post)
	if err != nil || post.Actor != uri.Actor || post.Rkey != uri.Rkey {
		return domain.InvalidRequestError{Msg: "threadgate must share actor and rkey with its post"}
	}
	gate := models.Threadgate{
		URI:       uri.String(),
		Cid:       cid,
		Creator:   uri.Actor,
		PostURI:   record.Post,
		CreatedAt: record.CreatedAt,
		IndexedAt: now,
	}
	return errors.Wrap(tx.Create(&gate).Error, "insert threadgate")
}

func (p *threadgatePlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeThreadgate(raw)
	if err != nil {
		return "", err
	}
	var existing []models.Threadgate
	err = tx.Where("post_uri = ?", record.Post).Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate threadgate")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *threadgatePlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *threadgatePlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *threadgatePlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.Threadgate{}).Error, "delete threadgate")
}

func (p *threadgatePlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}

type postgatePlugin struct{}

func decodePostgate(raw json.RawMessage) (*meridian.PostgateRecord, error) {
	var record meridian.PostgateRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed postgate record"}
	}
	return &record, nil
}

func (p *postgatePlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodePostgate(raw)
	if err != nil {
		return err
	}
	post, err := meridian.ParseRecordURI(record.Post)
	if err != nil || post.Actor != uri.Actor || post.Rkey != uri.Rkey {
		return domain.InvalidRequestError{Msg: "postgate must share actor and rkey with its post"}
	}
	gate := models.Postgate{
		URI:       uri.String(),
		Cid:       cid,
		Creator:   uri.Actor,
		PostURI:   record.Post,
		CreatedAt: record.CreatedAt,
		IndexedAt: now,
	}
	if err := tx.Create(&gate).Error; err != nil {
		return errors.Wrap(err, "insert postgate")
	}
	return p.applyDetachments(tx, record)
}

// applyDetachments retroactively flags quoting posts the gate detaches.
// Posts quoting under a blanket embedding disable keep their flag from quote
// time; only explicit detachments are applied backwards.
func (p *postgatePlugin) applyDetachments(tx *gorm.DB, record *meridian.PostgateRecord) error {
	if len(record.DetachedEmbeds) == 0 {
		return nil
	}
	err := tx.Model(&models.Post{}).
		Where("uri IN ?", record.DetachedEmbeds).
		Update("violates_embedding_rules", true).Error
	return errors.Wrap(err, "apply embed detachments")
}

func (p *postgatePlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodePostgate(raw)
	if err != nil {
		return "", err
	}
	var existing []models.Postgate
	err = tx.Where("post_uri = ?", record.Post).Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate postgate")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *postgatePlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *postgatePlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *postgatePlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.Postgate{}).Error, "delete postgate")
}

func (p *postgatePlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}
