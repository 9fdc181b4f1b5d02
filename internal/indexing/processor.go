package indexing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	meridian "github.com/meridian-social/meridian"
	"github.com/meridian-social/meridian/internal/domain"
	"github.com/meridian-social/meridian/internal/infra/database/models"
	"github.com/meridian-social/meridian/internal/metrics"
)

var tracer = otel.Tracer("indexing")

// plugin is the per-collection indexing behavior behind the generic
// processor. One plugin per collection, registered on the engine.
type plugin interface {
	insertRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) error
	// findDuplicate reports an equivalent already-indexed record at another
	// URI, for first-writer-wins collections. Returns "" when none.
	findDuplicate(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) (string, error)
	deleteRecord(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) error
	notifsForInsert(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, cid string, raw json.RawMessage, now time.Time) ([]meridian.NotificationEvent, error)
	notifsForDelete(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI) ([]meridian.NotificationEvent, error)
	// updateAggregates refreshes denormalized counters touched by the given
	// record. Must be idempotent: it also runs for losers of insert races,
	// against the winner's row.
	updateAggregates(ctx context.Context, tx *gorm.DB, uri meridian.RecordURI, raw json.RawMessage) error
}

// Engine indexes and deletes records transactionally and emits notification
// events for the signal service to route. It never delivers notifications
// itself.
type Engine struct {
	db      *gorm.DB
	plugins map[string]plugin
}

func NewEngine(db *gorm.DB) *Engine {
	e := &Engine{
		db:      db,
		plugins: make(map[string]plugin),
	}
	e.plugins[meridian.CollectionPost] = &postPlugin{}
	e.plugins[meridian.CollectionRepost] = &repostPlugin{}
	e.plugins[meridian.CollectionLike] = &likePlugin{}
	e.plugins[meridian.CollectionThreadgate] = &threadgatePlugin{}
	e.plugins[meridian.CollectionPostgate] = &postgatePlugin{}
	e.plugins[meridian.CollectionFollow] = &followPlugin{}
	e.plugins[meridian.CollectionBlock] = &blockPlugin{}
	e.plugins[meridian.CollectionMute] = &mutePlugin{}
	e.plugins[meridian.CollectionListMute] = &listMutePlugin{}
	e.plugins[meridian.CollectionListBlock] = &listBlockPlugin{}
	e.plugins[meridian.CollectionList] = &listPlugin{}
	e.plugins[meridian.CollectionListItem] = &listItemPlugin{}
	e.plugins[meridian.CollectionProfile] = &profilePlugin{}
	return e
}

// IndexRecord indexes one record. Re-delivery of an already-indexed URI is a
// no-op. A record equivalent to one already indexed under another URI loses
// first-writer-wins: it is tracked as a duplicate, emits no notifications,
// but still refreshes aggregates against the winner's row.
func (e *Engine) IndexRecord(ctx context.Context, rawURI string, raw json.RawMessage) ([]meridian.NotificationEvent, error) {
	ctx, span := tracer.Start(ctx, "Indexing.Engine.IndexRecord")
	defer span.End()

	uri, err := meridian.ParseRecordURI(rawURI)
	if err != nil {
		span.RecordError(err)
		return nil, domain.InvalidRequestError{Msg: "invalid record uri"}
	}
	p, ok := e.plugins[uri.Collection]
	if !ok {
		return nil, domain.InvalidRequestError{Msg: "unsupported collection"}
	}

	start := time.Now()
	defer func() {
		metrics.IndexingDuration.WithLabelValues(uri.Collection).Observe(time.Since(start).Seconds())
	}()

	cid := meridian.ComputeCid(raw)
	now := time.Now().UTC()
	outcome := metrics.OutcomeIndexed

	var events []meridian.NotificationEvent
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := models.Record{
			URI:       rawURI,
			Cid:       cid,
			Did:       uri.Actor,
			JSON:      string(raw),
			IndexedAt: now,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
		if res.Error != nil {
			return errors.Wrap(res.Error, "insert record")
		}
		if res.RowsAffected == 0 {
			outcome = metrics.OutcomeSkipped
			return nil
		}

		winner, err := p.findDuplicate(ctx, tx, uri, raw)
		if err != nil {
			return err
		}
		if winner == "" {
			err = p.insertRecord(ctx, tx, uri, cid, raw, now)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost an insert race; resolve the winner after the fact.
				winner, err = p.findDuplicate(ctx, tx, uri, raw)
				if err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}

		if winner != "" {
			outcome = metrics.OutcomeDuplicate
			dup := models.DuplicateRecord{
				URI:         rawURI,
				Cid:         cid,
				DuplicateOf: winner,
				IndexedAt:   now,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&dup).Error; err != nil {
				return errors.Wrap(err, "insert duplicate record")
			}
			return p.updateAggregates(ctx, tx, uri, raw)
		}

		events, err = p.notifsForInsert(ctx, tx, uri, cid, raw, now)
		if err != nil {
			return err
		}
		if err := storeNotifications(tx, events); err != nil {
			return err
		}
		return p.updateAggregates(ctx, tx, uri, raw)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	metrics.RecordsIndexed.WithLabelValues(uri.Collection, outcome).Inc()
	for _, event := range events {
		metrics.NotificationsEmitted.WithLabelValues(string(event.Reason)).Inc()
	}
	return events, nil
}

// DeleteRecord removes a record and its derived rows, emits retraction
// events, and refreshes aggregates. Deleting an unknown URI is a no-op.
func (e *Engine) DeleteRecord(ctx context.Context, rawURI string) ([]meridian.NotificationEvent, error) {
	ctx, span := tracer.Start(ctx, "Indexing.Engine.DeleteRecord")
	defer span.End()

	uri, err := meridian.ParseRecordURI(rawURI)
	if err != nil {
		span.RecordError(err)
		return nil, domain.InvalidRequestError{Msg: "invalid record uri"}
	}
	p, ok := e.plugins[uri.Collection]
	if !ok {
		return nil, domain.InvalidRequestError{Msg: "unsupported collection"}
	}

	var events []meridian.NotificationEvent
	var raw json.RawMessage
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.Record
		err := tx.Where("uri = ?", rawURI).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "load record")
		}
		raw = json.RawMessage(record.JSON)

		events, err = p.notifsForDelete(ctx, tx, uri)
		if err != nil {
			return err
		}
		if err := p.deleteRecord(ctx, tx, uri); err != nil {
			return err
		}
		if err := tx.Where("uri = ?", rawURI).Delete(&models.Record{}).Error; err != nil {
			return errors.Wrap(err, "delete record")
		}
		if err := tx.Where("record_uri = ?", rawURI).Delete(&models.Notification{}).Error; err != nil {
			return errors.Wrap(err, "delete notifications")
		}
		return p.updateAggregates(ctx, tx, uri, raw)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if raw != nil {
		metrics.RecordsDeleted.WithLabelValues(uri.Collection).Inc()
	}
	return events, nil
}

// GetRecord returns the stored record body for a URI.
func (e *Engine) GetRecord(ctx context.Context, rawURI string) (json.RawMessage, error) {
	var record models.Record
	err := e.db.WithContext(ctx).Where("uri = ?", rawURI).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundError{Resource: "record"}
	}
	if err != nil {
		return nil, errors.Wrap(err, "get record")
	}
	return json.RawMessage(record.JSON), nil
}

// storeNotifications persists events with dedupe on (recipient, reason,
// record uri). A recipient already notified for the same record by the same
// reason is not notified again, even across deletes and re-inserts.
func storeNotifications(tx *gorm.DB, events []meridian.NotificationEvent) error {
	for _, event := range events {
		row := models.Notification{
			EventID:       event.ID,
			Did:           event.Recipient,
			Author:        event.Author,
			Reason:        string(event.Reason),
			ReasonSubject: event.ReasonSubject,
			RecordURI:     event.SubjectURI,
			RecordCid:     event.SubjectCid,
			SortAt:        event.SortAt,
		}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
		if err != nil {
			return errors.Wrap(err, "store notification")
		}
	}
	return nil
}

func newEvent(recipient, author string, reason meridian.NotificationReason, reasonSubject, subjectURI, subjectCid string, sortAt time.Time) meridian.NotificationEvent {
	return meridian.NotificationEvent{
		ID:            uuid.New().String(),
		Recipient:     recipient,
		Author:        author,
		Reason:        reason,
		ReasonSubject: reasonSubject,
		SubjectURI:    subjectURI,
		SubjectCid:    subjectCid,
		SortAt:        sortAt,
	}
}

// retractionsFor turns the stored notifications of a record into retraction
// events, so the signal service can tell clients to drop them.
func retractionsFor(tx *gorm.DB, recordURI string) ([]meridian.NotificationEvent, error) {
	var rows []models.Notification
	err := tx.Where("record_uri = ?", recordURI).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "load notifications for retraction")
	}
	events := make([]meridian.NotificationEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, meridian.NotificationEvent{
			ID:            uuid.New().String(),
			Recipient:     row.Did,
			Author:        row.Author,
			Reason:        meridian.NotificationReason(row.Reason),
			ReasonSubject: row.ReasonSubject,
			SubjectURI:    row.RecordURI,
			SubjectCid:    row.RecordCid,
			SortAt:        row.SortAt,
			Retraction:    true,
		})
	}
	return events, nil
}

// dedupeByRecipient keeps the first event per (recipient, reason) so one
// write never notifies the same actor twice, and drops self-notifications.
func dedupeByRecipient(author string, events []meridian.NotificationEvent) []meridian.NotificationEvent {
	type key struct {
		recipient string
		reason    meridian.NotificationReason
	}
	seen := make(map[key]struct{}, len(events))
	out := make([]meridian.NotificationEvent, 0, len(events))
	for _, event := range events {
		if event.Recipient == "" || event.Recipient == author {
			continue
		}
		k := key{event.Recipient, event.Reason}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, event)
	}
	return out
}
