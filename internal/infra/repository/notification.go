package repository

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/infra/database"
	"github.com/meridian-social/meridian/internal/infra/database/models"
	"github.com/meridian-social/meridian/internal/usecase"
)

type notificationKeyset struct {
	database.TimeCidKeyset
}

func newNotificationKeyset() notificationKeyset {
	return notificationKeyset{database.TimeCidKeyset{
		PrimaryCol:   "notifications.sort_at",
		SecondaryCol: "notifications.record_cid",
	}}
}

func (k notificationKeyset) Label(row models.Notification) database.LabeledResult {
	return k.TimeCidKeyset.Label(database.TimeCidRow{SortAt: row.SortAt, Cid: row.RecordCid})
}

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Page(ctx context.Context, recipient string, opts usecase.PageOpts) ([]usecase.NotificationData, string, error) {
	keyset := newNotificationKeyset()

	base := r.db.Model(&models.Notification{}).
		Where("notifications.did = ?", recipient)
	query, err := database.Paginate[models.Notification](base, keyset, database.PageOpts{
		Limit:  opts.Limit,
		Cursor: opts.Cursor,
	})
	if err != nil {
		return nil, "", err
	}

	var rows []models.Notification
	if err := query.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, "", errors.Wrap(err, "NotificationRepository.Page")
	}

	items := make([]usecase.NotificationData, 0, len(rows))
	for _, row := range rows {
		items = append(items, usecase.NotificationData{
			ID:            strconv.FormatInt(row.ID, 10),
			Author:        row.Author,
			Reason:        meridian.NotificationReason(row.Reason),
			ReasonSubject: row.ReasonSubject,
			SubjectURI:    row.RecordURI,
			SubjectCid:    row.RecordCid,
			SortAt:        row.SortAt,
		})
	}
	return items, database.PackFromResult[models.Notification](keyset, rows), nil
}

var _ usecase.NotificationRepository = (*NotificationRepository)(nil)
