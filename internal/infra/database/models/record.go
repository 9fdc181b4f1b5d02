package models

import (
	"time"
)

// Record is the raw indexed record row. Every derived table row traces back
// to exactly one record.
type Record struct {
	URI       string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid       string    `json:"cid" gorm:"type:text;not null"`
	Did       string    `json:"did" gorm:"type:text;index;not null"`
	JSON      string    `json:"json" gorm:"type:text;not null"`
	IndexedAt time.Time `json:"indexedAt" gorm:"type:timestamp with time zone;not null"`
}

// DuplicateRecord tracks records that lost a first-writer-wins race against
// an equivalent record at a different URI.
type DuplicateRecord struct {
	URI         string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid         string    `json:"cid" gorm:"type:text;not null"`
	DuplicateOf string    `json:"duplicateOf" gorm:"type:text;index;not null"`
	IndexedAt   time.Time `json:"indexedAt" gorm:"type:timestamp with time zone;not null"`
}
