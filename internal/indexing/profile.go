package indexing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/domain"
	"github.com/meridian-social/meridian/internal/infra/database/models"
)

type profilePlugin struct{}

// insertRecord upserts the actor row. Unlike other collections, a profile is
// a singleton per actor: re-indexing replaces the displayed fields.
func (p *profilePlugin) insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error {
	var record meridian.ProfileRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.InvalidRequestError{Msg: "malformed profile record"}
	}
	actor := models.Actor{
		Did:         uri.Actor,
		DisplayName: record.DisplayName,
		Description: record.Description,
		AvatarCid:   record.AvatarCid,
		BannerCid:   record.BannerCid,
		IndexedAt:   now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "did"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "description", "avatar_cid", "banner_cid", "indexed_at"}),
	}).Create(&actor).Error
	return errors.Wrap(err, "upsert actor")
}

func (p *profilePlugin) findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error) {
	return "", nil
}

func (p *profilePlugin) notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

func (p *profilePlugin) notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error) {
	return nil, nil
}

// deleteRecord clears the displayed fields but keeps the actor row, since
// other rows still reference the did.
func (p *profilePlugin) deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error {
	err := tx.Model(&models.Actor{}).
		Where("did = ?", uri.Actor).
		Updates(map[string]any{
			"display_name": "",
			"description":  "",
			"avatar_cid":   "",
			"banner_cid":   "",
		}).Error
	return errors.Wrap(err, "clear actor profile")
}

func (p *profilePlugin) updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error {
	return nil
}
