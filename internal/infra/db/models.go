package db

import "time"

type DocumentModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	Collection string    `gorm:"index:idx_documents_collection_created,priority:1;not null"`
	Title      string    `gorm:"index;not null"`
	Category   string    `gorm:"index"`
	Language   string    `gorm:"index"`
	Placement  string    `gorm:"index"`
	Payload    []byte    `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time `gorm:"index:idx_documents_collection_created,priority:2;not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (DocumentModel) TableName() string {
	return "documents"
}

type ProfileSettingModel struct {
	Key       string    `gorm:"primaryKey"`
	Value     []byte    `gorm:"type:bytea;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ProfileSettingModel) TableName() string {
	return "profile_settings"
}

type AuditEventModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	Seq           int64     `gorm:"uniqueIndex;not null"`
	Action        string    `gorm:"not null"`
	Collection    string    `gorm:"index;not null"`
	DocumentID    string    `gorm:"index;not null"`
	ActorHash     string    `gorm:"not null"`
	PayloadHash   string    `gorm:"not null"`
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (AuditEventModel) TableName() string {
	return "content_audit_events"
}
