package models

import (
	"time"
)

type Actor struct {
	Did         string    `json:"did" gorm:"primaryKey;type:text"`
	Handle      string    `json:"handle" gorm:"type:text;index"`
	DisplayName string    `json:"displayName" gorm:"type:text"`
	Description string    `json:"description" gorm:"type:text"`
	AvatarCid   string    `json:"avatarCid" gorm:"type:text"`
	BannerCid   string    `json:"bannerCid" gorm:"type:text"`
	IndexedAt   time.Time `json:"indexedAt" gorm:"type:timestamp with time zone;not null"`
}

// ProfileAgg carries denormalized per-actor counters.
type ProfileAgg struct {
	Did            string `json:"did" gorm:"primaryKey;type:text"`
	FollowersCount int64  `json:"followersCount" gorm:"not null;default:0"`
	FollowsCount   int64  `json:"followsCount" gorm:"not null;default:0"`
	PostsCount     int64  `json:"postsCount" gorm:"not null;default:0"`
}

type Follow struct {
	URI        string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid        string    `json:"cid" gorm:"type:text;not null"`
	Creator    string    `json:"creator" gorm:"type:text;index:idx_follow_creator_subject,unique,priority:1;not null"`
	SubjectDid string    `json:"subjectDid" gorm:"type:text;index:idx_follow_creator_subject,unique,priority:2;index;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
	SortAt     time.Time `json:"sortAt" gorm:"type:timestamp with time zone;not null"`
}

// Block is stored directionally; visibility suppression is symmetric and
// resolved by the relationship engine.
type Block struct {
	URI        string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid        string    `json:"cid" gorm:"type:text;not null"`
	Creator    string    `json:"creator" gorm:"type:text;index:idx_block_creator_subject,unique,priority:1;not null"`
	SubjectDid string    `json:"subjectDid" gorm:"type:text;index:idx_block_creator_subject,unique,priority:2;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
}

type Mute struct {
	URI        string    `json:"uri" gorm:"primaryKey;type:text"`
	Creator    string    `json:"creator" gorm:"type:text;index:idx_mute_creator_subject,unique,priority:1;not null"`
	SubjectDid string    `json:"subjectDid" gorm:"type:text;index:idx_mute_creator_subject,unique,priority:2;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
}

type List struct {
	URI         string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid         string    `json:"cid" gorm:"type:text;not null"`
	Creator     string    `json:"creator" gorm:"type:text;index;not null"`
	Name        string    `json:"name" gorm:"type:text;not null"`
	Purpose     string    `json:"purpose" gorm:"type:text;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
	IndexedAt   time.Time `json:"indexedAt" gorm:"type:timestamp with time zone;not null"`
}

type ListItem struct {
	URI        string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid        string    `json:"cid" gorm:"type:text;not null"`
	Creator    string    `json:"creator" gorm:"type:text;index;not null"`
	ListURI    string    `json:"listUri" gorm:"type:text;index:idx_listitem_list_subject,unique,priority:1;not null"`
	SubjectDid string    `json:"subjectDid" gorm:"type:text;index:idx_listitem_list_subject,unique,priority:2;not null"`
	CreatedAt  time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
}

// ListBlock subscribes its creator to a moderation list as a block source.
type ListBlock struct {
	URI       string    `json:"uri" gorm:"primaryKey;type:text"`
	Cid       string    `json:"cid" gorm:"type:text;not null"`
	Creator   string    `json:"creator" gorm:"type:text;index:idx_listblock_creator_list,unique,priority:1;not null"`
	ListURI   string    `json:"listUri" gorm:"type:text;index:idx_listblock_creator_list,unique,priority:2;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
}

// ListMute subscribes its creator to a list as a mute source.
type ListMute struct {
	URI       string    `json:"uri" gorm:"primaryKey;type:text"`
	Creator   string    `json:"creator" gorm:"type:text;index:idx_listmute_creator_list,unique,priority:1;not null"`
	ListURI   string    `json:"listUri" gorm:"type:text;index:idx_listmute_creator_list,unique,priority:2;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null"`
}
