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

// Graph plugins: follow, block, mute. Follows notify; blocks and mutes are
// silent and take effect purely through the relationship engine on reads.

type followPlugin struct{}

func decodeFollow(raw json.RawMessage) (*meridian.FollowRecord, error) {
	var record meridian.FollowRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed follow record"}
	}
	return &record, nil
}

func (p *followPlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeFollow(raw)
	if err != nil {
		return err
	}
	follow := models.Follow{
		URI:        uri.String(),
		Cid:        cid,
		Creator:    uri.Actor,
		SubjectDid: record.Subject,
		CreatedAt:  record.CreatedAt,
		SortAt:     sortAt(record.CreatedAt, now),
	}
	return errors.Wrap(tx.Create(&follow).Error, "insert follow")
}

func (p *followPlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeFollow(raw)
	if err != nil {
		return "", err
	}
	var existing []models.Follow
	err = tx.Where("creator = ? AND subject_did = ?", uri.Actor, record.Subject).
		Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate follow")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *followPlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	record, err := decodeFollow(raw)
	if err != nil {
		return nil, err
	}
	event := newEvent(record.Subject, uri.Actor, meridian.ReasonFollow, "", uri.String(), cid, sortAt(record.CreatedAt, now))
	return dedupeByRecipient(uri.Actor, []meridian.NotificationEvent{event}), nil
}

func (p *followPlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return retractionsFor(tx, uri.String())
}

func (p *followPlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.Follow{}).Error, "delete follow")
}

func (p *followPlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	record, err := decodeFollow(raw)
	if err != nil {
		return err
	}
	err = tx.Exec(`
INSERT INTO profile_aggs (did, follows_count)
VALUES (?, (SELECT COUNT(*) FROM follows WHERE creator = ?))
ON CONFLICT (did) DO UPDATE SET follows_count = EXCLUDED.follows_count
`, uri.Actor, uri.Actor).Error
	if err != nil {
		return errors.Wrap(err, "refresh follows count")
	}
	err = tx.Exec(`
INSERT INTO profile_aggs (did, followers_count)
VALUES (?, (SELECT COUNT(*) FROM follows WHERE subject_did = ?))
ON CONFLICT (did) DO UPDATE SET followers_count = EXCLUDED.followers_count
`, record.Subject, record.Subject).Error
	return errors.Wrap(err, "refresh followers count")
}

type blockPlugin struct{}

func decodeBlock(raw json.RawMessage) (*meridian.BlockRecord, error) {
	var record meridian.BlockRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed block record"}
	}
	return &record, nil
}

func (p *blockPlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeBlock(raw)
	if err != nil {
		return err
	}
	block := models.Block{
		URI:        uri.String(),
		Cid:        cid,
		Creator:    uri.Actor,
		SubjectDid: record.Subject,
		CreatedAt:  record.CreatedAt,
	}
	return errors.Wrap(tx.Create(&block).Error, "insert block")
}

func (p *blockPlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeBlock(raw)
	if err != nil {
		return "", err
	}
	var existing []models.Block
	err = tx.Where("creator = ? AND subject_did = ?", uri.Actor, record.Subject).
		Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate block")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *blockPlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *blockPlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *blockPlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.Block{}).Error, "delete block")
}

func (p *blockPlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}

type mutePlugin struct{}

func decodeMute(raw json.RawMessage) (*meridian.MuteRecord, error) {
	var record meridian.MuteRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed mute record"}
	}
	return &record, nil
}

func (p *mutePlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeMute(raw)
	if err != nil {
		return err
	}
	mute := models.Mute{
		URI:        uri.String(),
		Creator:    uri.Actor,
		SubjectDid: record.Subject,
		CreatedAt:  record.CreatedAt,
	}
	return errors.Wrap(tx.Create(&mute).Error, "insert mute")
}

func (p *mutePlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeMute(raw)
	if err != nil {
		return "", err
	}
	var existing []models.Mute
	err = tx.Where("creator = ? AND subject_did = ?", uri.Actor, record.Subject).
		Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate mute")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *mutePlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *mutePlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *mutePlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.Mute{}).Error, "delete mute")
}

func (p *mutePlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}
