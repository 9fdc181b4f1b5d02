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

// List plugins: lists, memberships, and the block/mute subscriptions built
// on them. None of these notify.

type listPlugin struct{}

func (p *listPlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	var record meridian.ListRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.InvalidRequestError{Msg: "malformed list record"}
	}
	list := models.List{
		URI:         uri.String(),
		Cid:         cid,
		Creator:     uri.Actor,
		Name:        record.Name,
		Purpose:     string(record.Purpose),
		Description: record.Description,
		CreatedAt:   record.CreatedAt,
		IndexedAt:   now,
	}
	return errors.Wrap(tx.Create(&list).Error, "insert list")
}

func (p *listPlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	return "", nil
}

func (p *listPlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *listPlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

// deleteRecord drops the list and its memberships. Subscriptions pointing at
// the deleted list simply stop matching anything.
func (p *listPlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	if err := tx.Where("list_uri = ?", uri.String()).Delete(&models.ListItem{}).Error; err != nil {
		return errors.Wrap(err, "delete list items")
	}
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.List{}).Error, "delete list")
}

func (p *listPlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}

type listItemPlugin struct{}

func decodeListItem(raw json.RawMessage) (*meridian.ListItemRecord, error) {
	var record meridian.ListItemRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed list item record"}
	}
	return &record, nil
}

// insertRecord rejects memberships added to someone else's list.
func (p *listItemPlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeListItem(raw)
	if err != nil {
		return err
	}
	if meridian.ActorOf(record.List) != uri.Actor {
		return domain.InvalidRequestError{Msg: "list item creator must own the list"}
	}
	item := models.ListItem{
		URI:        uri.String(),
		Cid:        cid,
		Creator:    uri.Actor,
		ListURI:    record.List,
		SubjectDid: record.Subject,
		CreatedAt:  record.CreatedAt,
	}
	return errors.Wrap(tx.Create(&item).Error, "insert list item")
}

func (p *listItemPlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeListItem(raw)
	if err != nil {
		return "", err
	}
	var existing []models.ListItem
	err = tx.Where("list_uri = ? AND subject_did = ?", record.List, record.Subject).
		Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate list item")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *listItemPlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *listItemPlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *listItemPlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.ListItem{}).Error, "delete list item")
}

func (p *listItemPlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}

type listBlockPlugin struct{}

func decodeListBlock(raw json.RawMessage) (*meridian.ListBlockRecord, error) {
	var record meridian.ListBlockRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed list block record"}
	}
	return &record, nil
}

func (p *listBlockPlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeListBlock(raw)
	if err != nil {
		return err
	}
	row := models.ListBlock{
		URI:       uri.String(),
		Cid:       cid,
		Creator:   uri.Actor,
		ListURI:   record.List,
		CreatedAt: record.CreatedAt,
	}
	return errors.Wrap(tx.Create(&row).Error, "insert list block")
}

func (p *listBlockPlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeListBlock(raw)
	if err != nil {
		return "", err
	}
	var existing []models.ListBlock
	err = tx.Where("creator = ? AND list_uri = ?", uri.Actor, record.List).
		Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate list block")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *listBlockPlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *listBlockPlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *listBlockPlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.ListBlock{}).Error, "delete list block")
}

func (p *listBlockPlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}

type listMutePlugin struct{}

func decodeListMute(raw json.RawMessage) (*meridian.ListMuteRecord, error) {
	var record meridian.ListMuteRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.InvalidRequestError{Msg: "malformed list mute record"}
	}
	return &record, nil
}

func (p *listMutePlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	record, err := decodeListMute(raw)
	if err != nil {
		return err
	}
	row := models.ListMute{
		URI:       uri.String(),
		Creator:   uri.Actor,
		ListURI:   record.List,
		CreatedAt: record.CreatedAt,
	}
	return errors.Wrap(tx.Create(&row).Error, "insert list mute")
}

func (p *listMutePlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	record, err := decodeListMute(raw)
	if err != nil {
		return "", err
	}
	var existing []models.ListMute
	err = tx.Where("creator = ? AND list_uri = ?", uri.Actor, record.List).
		Limit(1).Find(&existing).Error
	if err != nil {
		return "", errors.Wrap(err, "find duplicate list mute")
	}
	if len(existing) == 0 || existing[0].URI == uri.String() {
		return "", nil
	}
	return existing[0].URI, nil
}

func (p *listMutePlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *listMutePlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *listMutePlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	return errors.Wrap(tx.Where("uri = ?", uri.String()).Delete(&models.ListMute{}).Error, "delete list mute")
}

func (p *listMutePlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}
