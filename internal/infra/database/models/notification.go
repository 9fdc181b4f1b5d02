package models

import (
	"time"
)

// Notification is the stored form of a fan-out event. The unique index
// makes re-delivery of the same write a no-op instead of a duplicate.
type Notification struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	EventID       string    `json:"eventId" gorm:"type:text;not null"`
	Did           string    `json:"did" gorm:"type:text;index:idx_notification_dedupe,unique,priority:1;index:idx_notification_page,priority:1;not null"`
	Author        string    `json:"author" gorm:"type:text;not null"`
	Reason        string    `json:"reason" gorm:"type:text;index:idx_notification_dedupe,unique,priority:2;not null"`
	ReasonSubject string    `json:"reasonSubject" gorm:"type:text"`
	RecordURI     string    `json:"recordUri" gorm:"type:text;index:idx_notification_dedupe,unique,priority:3;index;not null"`
	RecordCid     string    `json:"recordCid" gorm:"type:text;not null"`
	SortAt        time.Time `json:"sortAt" gorm:"type:timestamp with time zone;not null;index:idx_notification_page,priority:2"`
}
