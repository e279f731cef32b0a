// Package models holds the GORM models for persistent storage.
package models

import "time"

// ChatMessage is one stored turn of a session transcript.
type ChatMessage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:128;not null;index"`
	Role      string `gorm:"size:8;not null"`
	Text      string `gorm:"type:text"`
	CreatedAt time.Time
}
