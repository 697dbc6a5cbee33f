package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Notification struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index"`
	Type              string         `gorm:"type:varchar(40);not null"`
	Priority          string         `gorm:"type:varchar(10);not null;default:'normal'"`
	Title             string         `gorm:"type:varchar(255)"`
	Body              string         `gorm:"type:text"`
	IsRead            bool           `gorm:"not null;default:false;index"`
	ReadAt            *time.Time     `gorm:"index"`
	ChannelsAttempted pq.StringArray `gorm:"type:text"`
	SentViaInApp      bool           `gorm:"not null;default:false"`
	SentViaPush       bool           `gorm:"not null;default:false"`
	SentViaEmail      bool           `gorm:"not null;default:false"`
	SentViaSMS        bool           `gorm:"column:sent_via_sms;not null;default:false"`
	InAppSentAt       *time.Time
	PushSentAt        *time.Time
	EmailSentAt       *time.Time
	SMSSentAt         *time.Time `gorm:"column:sms_sent_at"`
	ActionURL         *string    `gorm:"type:varchar(512)"`
	RelatedEntityType *string    `gorm:"type:varchar(50)"`
	RelatedEntityID   *string    `gorm:"type:varchar(64)"`
	ExpiresAt         *time.Time `gorm:"index"`
	Metadata          string     `gorm:"type:text"`
	CreatedAt         time.Time  `gorm:"index"`
}
