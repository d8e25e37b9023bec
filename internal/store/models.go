package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// PathMap is a map[kind]vaultPath persisted as a single JSON text column.
// It implements sql.Scanner/driver.Valuer so gorm can round-trip it
// without a dedicated join table, mirroring how the teacher stores
// loosely-structured configuration blocks as JSON text.
type PathMap map[string]string

// Value implements driver.Valuer.
func (p PathMap) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal file paths: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *PathMap) Scan(value interface{}) error {
	if value == nil {
		*p = PathMap{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported PathMap scan type %T", value)
	}
	if len(raw) == 0 {
		*p = PathMap{}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to unmarshal file paths: %w", err)
	}
	*p = m
	return nil
}

// Meeting is the primary aggregate: one row per bot-provider meeting id.
type Meeting struct {
	ID              string `gorm:"primaryKey"`
	UserID          string `gorm:"index;not null"`
	CreatedAt       int64  `gorm:"not null"`
	ProcessState    string `gorm:"not null;index"`
	StateChangedAt  int64  `gorm:"not null"`
	DurationSeconds int
	FilePaths       PathMap `gorm:"type:text"`
	ActiveVersion   int
}

// TableName pins the table name so it does not change if the struct is
// renamed.
func (Meeting) TableName() string { return "meetings" }

// MeetingKey holds the wrapped data key for a meeting. At most one row per
// meeting, never updated in place after creation (invariant 3).
type MeetingKey struct {
	MeetingID  string `gorm:"primaryKey"`
	FileIVHex  string `gorm:"not null"`
	WrapIVHex  string `gorm:"not null"`
	CipherHex  string `gorm:"not null"`
	TagHex     string `gorm:"not null"`
}

func (MeetingKey) TableName() string { return "meeting_keys" }

// Revision is one append-only audit entry for a meeting's transcript or
// summary history.
type Revision struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	MeetingID   string `gorm:"not null;index:idx_meeting_kind_version,unique,priority:1"`
	Version     int    `gorm:"not null;index:idx_meeting_kind_version,unique,priority:3"`
	Kind        string `gorm:"not null;index:idx_meeting_kind_version,unique,priority:2"`
	ContentHash string `gorm:"not null;index"`
	VaultPath   string `gorm:"not null"`
	CreatedAt   int64  `gorm:"not null"`
}

func (Revision) TableName() string { return "revisions" }
