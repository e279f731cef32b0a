package history

import (
	"fmt"

	"github.com/sofai/sofaid/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBStore persists session histories through GORM, so transcripts survive
// process restarts. It satisfies the same ordering contract as MemoryStore:
// rows are returned in primary-key order, which is insertion order.
type DBStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a SQLite-backed store at path.
func OpenSQLite(path string) (*DBStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite %s: %w", path, err)
	}
	return newDBStore(db)
}

// OpenMySQL opens a MySQL-backed store with the given DSN.
func OpenMySQL(dsn string) (*DBStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open mysql: %w", err)
	}
	return newDBStore(db)
}

func newDBStore(db *gorm.DB) (*DBStore, error) {
	if err := db.AutoMigrate(&models.ChatMessage{}); err != nil {
		return nil, fmt.Errorf("history: auto-migrate: %w", err)
	}
	return &DBStore{db: db}, nil
}

// Append inserts the message as the newest row of the session.
func (s *DBStore) Append(sessionID string, msg Message) error {
	row := models.ChatMessage{
		SessionID: sessionID,
		Role:      msg.Role,
		Text:      msg.Text,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("history: append to %q: %w", sessionID, err)
	}
	return nil
}

// History returns the session's messages in append order.
func (s *DBStore) History(sessionID string) ([]Message, error) {
	var rows []models.ChatMessage
	if err := s.db.Where("session_id = ?", sessionID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: load %q: %w", sessionID, err)
	}
	msgs := make([]Message, len(rows))
	for i, r := range rows {
		msgs[i] = Message{Role: r.Role, Text: r.Text}
	}
	return msgs, nil
}

// Clear deletes all rows of the session. Unknown sessions are a no-op.
func (s *DBStore) Clear(sessionID string) error {
	if err := s.db.Where("session_id = ?", sessionID).Delete(&models.ChatMessage{}).Error; err != nil {
		return fmt.Errorf("history: clear %q: %w", sessionID, err)
	}
	return nil
}

// Sessions lists distinct session IDs.
func (s *DBStore) Sessions() ([]string, error) {
	var ids []string
	if err := s.db.Model(&models.ChatMessage{}).Distinct("session_id").Order("session_id").Pluck("session_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("history: list sessions: %w", err)
	}
	return ids, nil
}
