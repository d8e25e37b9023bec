// Package store implements scribevault's metadata store (component C):
// durable records of meetings, wrapped keys, and the revision log, backed
// by gorm over sqlite or postgres, matching the teacher's dual-driver
// DatabaseConfig.getState() selection.
package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/scribevault/internal/apperrors"
	"github.com/example/scribevault/internal/cryptutil"
)

// Kind values for Revision.Kind.
const (
	KindTranscript = "transcript"
	KindSummary    = "summary"
)

// Process state values, defined here rather than in internal/pipeline to
// avoid an import cycle; internal/pipeline re-exports these as its own
// constants.
const (
	StateInitializing = "initializing"
	StateDownloading  = "downloading"
	StateDownloaded   = "downloaded"
	StateTranscribing = "transcribing"
	StateCompleted    = "completed"
	StateFailed       = "failed"
)

// Store wraps a *gorm.DB and the process-wide master key used to wrap and
// unwrap each meeting's data key.
type Store struct {
	db        *gorm.DB
	masterKey []byte
}

// Open connects to the configured database backend and returns a ready
// *gorm.DB (not yet migrated).
func Open(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// New wraps an already-open *gorm.DB with the master key used for
// key-wrap operations.
func New(db *gorm.DB, masterKey []byte) *Store {
	return &Store{db: db, masterKey: masterKey}
}

// Migrate runs gorm's auto-migration for all three tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Meeting{}, &MeetingKey{}, &Revision{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// CreateMeeting inserts a new meeting row in state "initializing".
func (s *Store) CreateMeeting(ctx context.Context, id, userID string, nowMs int64) (*Meeting, error) {
	m := &Meeting{
		ID:             id,
		UserID:         userID,
		CreatedAt:      nowMs,
		ProcessState:   StateInitializing,
		StateChangedAt: nowMs,
		FilePaths:      PathMap{},
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}
	return m, nil
}

// GetMeeting returns a meeting by id, or apperrors.ErrNotFound.
func (s *Store) GetMeeting(ctx context.Context, id string) (*Meeting, error) {
	var m Meeting
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: meeting %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return &m, nil
}

// ListMeetingsByUser returns meetings owned by userID, newest first.
func (s *Store) ListMeetingsByUser(ctx context.Context, userID string) ([]*Meeting, error) {
	var meetings []*Meeting
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&meetings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	return meetings, nil
}

// ProcessStateUpdate is a partial update to a meeting's process state.
type ProcessStateUpdate struct {
	State           string
	FilePaths       PathMap // nil means "leave unchanged"
	DurationSeconds *int    // nil means "leave unchanged"
	ActiveVersion   *int    // nil means "leave unchanged"
}

// UpdateProcessState applies a partial update and always bumps
// StateChangedAt.
func (s *Store) UpdateProcessState(ctx context.Context, id string, nowMs int64, upd ProcessStateUpdate) error {
	updates := map[string]interface{}{
		"process_state":    upd.State,
		"state_changed_at": nowMs,
	}
	if upd.FilePaths != nil {
		updates["file_paths"] = upd.FilePaths
	}
	if upd.DurationSeconds != nil {
		updates["duration_seconds"] = *upd.DurationSeconds
	}
	if upd.ActiveVersion != nil {
		updates["active_version"] = *upd.ActiveVersion
	}

	res := s.db.WithContext(ctx).Model(&Meeting{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update meeting state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: meeting %s", apperrors.ErrNotFound, id)
	}
	return nil
}

// CompareAndSwapState atomically transitions id from fromState to
// toState, succeeding only if the row's current process_state still
// matches fromState. This is the CAS-style write design note §9 requires
// to prevent duplicate ingestion when concurrent /status polls race.
func (s *Store) CompareAndSwapState(ctx context.Context, id, fromState, toState string, nowMs int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Meeting{}).
		Where("id = ? AND process_state = ?", id, fromState).
		Updates(map[string]interface{}{
			"process_state":    toState,
			"state_changed_at": nowMs,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to CAS meeting state: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// StoreMeetingKey wraps rawKey under the master key and upserts the
// composite record for meetingID. Per invariant 3, callers must never
// call this twice for the same meeting with a different rawKey; gorm's
// upsert-by-primary-key semantics here serve meeting creation idempotency
// only (e.g. retrying a failed ingest before any key existed).
func (s *Store) StoreMeetingKey(ctx context.Context, meetingID string, rawKey, fileIV []byte) error {
	wrapped, err := cryptutil.WrapKey(s.masterKey, rawKey)
	if err != nil {
		return err
	}

	rec := &MeetingKey{
		MeetingID: meetingID,
		FileIVHex: hex.EncodeToString(fileIV),
		WrapIVHex: hex.EncodeToString(wrapped.IV),
		CipherHex: hex.EncodeToString(wrapped.Ciphertext),
		TagHex:    hex.EncodeToString(wrapped.Tag),
	}

	err = s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Assign(rec).
		FirstOrCreate(rec).Error
	if err != nil {
		return fmt.Errorf("failed to store meeting key: %w", err)
	}
	return nil
}

// GetMeetingKey unwraps and returns (rawKey, fileIV) for meetingID.
func (s *Store) GetMeetingKey(ctx context.Context, meetingID string) (rawKey, fileIV []byte, err error) {
	var rec MeetingKey
	err = s.db.WithContext(ctx).First(&rec, "meeting_id = ?", meetingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: meeting key for %s", apperrors.ErrNotFound, meetingID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get meeting key: %w", err)
	}

	iv, err := hex.DecodeString(rec.FileIVHex)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt file IV for meeting %s: %w", meetingID, err)
	}
	wrapIV, err := hex.DecodeString(rec.WrapIVHex)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt wrap IV for meeting %s: %w", meetingID, err)
	}
	ciphertext, err := hex.DecodeString(rec.CipherHex)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt wrapped ciphertext for meeting %s: %w", meetingID, err)
	}
	tag, err := hex.DecodeString(rec.TagHex)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt auth tag for meeting %s: %w", meetingID, err)
	}

	raw, err := cryptutil.UnwrapKey(s.masterKey, &cryptutil.WrappedKey{
		IV: wrapIV, Ciphertext: ciphertext, Tag: tag,
	})
	if err != nil {
		return nil, nil, err
	}
	return raw, iv, nil
}

// AddRevision appends a new audit entry.
func (s *Store) AddRevision(ctx context.Context, meetingID string, version int, hash, vaultPath, kind string, nowMs int64) (*Revision, error) {
	rev := &Revision{
		MeetingID:   meetingID,
		Version:     version,
		Kind:        kind,
		ContentHash: hash,
		VaultPath:   vaultPath,
		CreatedAt:   nowMs,
	}
	if err := s.db.WithContext(ctx).Create(rev).Error; err != nil {
		return nil, fmt.Errorf("failed to add revision: %w", err)
	}
	return rev, nil
}

// LatestVersion returns the highest version recorded for (meetingID,
// kind), or 0 if none exist.
func (s *Store) LatestVersion(ctx context.Context, meetingID, kind string) (int, error) {
	var maxVersion *int
	err := s.db.WithContext(ctx).Model(&Revision{}).
		Where("meeting_id = ? AND kind = ?", meetingID, kind).
		Select("MAX(version)").
		Scan(&maxVersion).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get latest version: %w", err)
	}
	if maxVersion == nil {
		return 0, nil
	}
	return *maxVersion, nil
}

// FindRevisionByHash returns the revision with an exact content hash
// match, or apperrors.ErrNotFound.
func (s *Store) FindRevisionByHash(ctx context.Context, hash string) (*Revision, error) {
	var rev Revision
	err := s.db.WithContext(ctx).First(&rev, "content_hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: revision with hash %s", apperrors.ErrNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find revision by hash: %w", err)
	}
	return &rev, nil
}

// ListRevisions returns all revisions for (meetingID, kind), newest first.
func (s *Store) ListRevisions(ctx context.Context, meetingID, kind string) ([]*Revision, error) {
	var revs []*Revision
	err := s.db.WithContext(ctx).
		Where("meeting_id = ? AND kind = ?", meetingID, kind).
		Order("version DESC").
		Find(&revs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	return revs, nil
}

// GetRevision returns a single revision by id.
func (s *Store) GetRevision(ctx context.Context, id uint) (*Revision, error) {
	var rev Revision
	err := s.db.WithContext(ctx).First(&rev, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: revision %d", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get revision: %w", err)
	}
	return &rev, nil
}

// CheckoutVersion rewrites the meeting's active_version and the
// transcript/summary entries of file_paths to point at the snapshot paths
// registered for version; paths for kinds not associated with a revision
// (e.g. audio) are preserved untouched.
func (s *Store) CheckoutVersion(ctx context.Context, meetingID string, version int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meeting Meeting
		if err := tx.First(&meeting, "id = ?", meetingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: meeting %s", apperrors.ErrNotFound, meetingID)
			}
			return fmt.Errorf("failed to load meeting: %w", err)
		}

		for _, kind := range []string{KindTranscript, KindSummary} {
			var rev Revision
			err := tx.First(&rev, "meeting_id = ? AND kind = ? AND version = ?", meetingID, kind, version).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no %s revision at version %d for meeting %s", apperrors.ErrNotFound, kind, version, meetingID)
			}
			if err != nil {
				return fmt.Errorf("failed to load revision: %w", err)
			}
			if meeting.FilePaths == nil {
				meeting.FilePaths = PathMap{}
			}
			meeting.FilePaths[kind] = rev.VaultPath
		}
		meeting.ActiveVersion = version

		if err := tx.Model(&Meeting{}).Where("id = ?", meetingID).
			Updates(map[string]interface{}{
				"file_paths":     meeting.FilePaths,
				"active_version": meeting.ActiveVersion,
			}).Error; err != nil {
			return fmt.Errorf("failed to checkout version: %w", err)
		}
		return nil
	})
}

// DeleteMeeting cascades: key record, revisions, then the meeting row
// itself, in that order — the key's absence is the authoritative
// crypto-shred, so on-disk blob unlinking is the orchestrator's
// responsibility, not the store's.
func (s *Store) DeleteMeeting(ctx context.Context, meetingID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ?", meetingID).Delete(&MeetingKey{}).Error; err != nil {
			return fmt.Errorf("failed to delete meeting key: %w", err)
		}
		if err := tx.Where("meeting_id = ?", meetingID).Delete(&Revision{}).Error; err != nil {
			return fmt.Errorf("failed to delete revisions: %w", err)
		}
		res := tx.Delete(&Meeting{}, "id = ?", meetingID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete meeting: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: meeting %s", apperrors.ErrNotFound, meetingID)
		}
		return nil
	})
}
