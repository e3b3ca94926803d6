package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kindledlabs/kindled/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingStore      = errors.New("object store is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	noOpLogger           = zap.NewNop()
)

const (
	opUpload  = "photos.upload"
	opSetMain = "photos.set_main"
	opDelete  = "photos.delete"
)

// IDProvider issues identifiers for newly created photos.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the collaborators the lifecycle service coordinates.
type ServiceConfig struct {
	Database   *gorm.DB
	Store      storage.ObjectStore
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service orchestrates photo upload, main-photo designation and deletion
// against the invariant that each user has at most one main photo.
//
// The service does not serialize concurrent set-main calls itself; the
// repository transaction is the point of serialization.
type Service struct {
	db         *gorm.DB
	store      storage.ObjectStore
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the photo lifecycle service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		store:      cfg.Store,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Upload sends the payload to the object store and persists the resulting
// photo record. The first photo persisted for a user becomes its main photo.
// Zero-length payloads pass through to the store unchanged.
//
// If persistence fails after the remote upload succeeded, the remote object
// is not cleaned up; the orphan is logged and the error surfaced.
func (s *Service) Upload(ctx context.Context, userID string, object io.Reader, size int64, contentType string) (Photo, error) {
	if userID == "" {
		return Photo{}, errMissingUserID
	}

	result, err := s.store.Upload(ctx, object, size, contentType)
	if err != nil {
		s.logError(opUpload, "store_upload_failed", err, zap.String("user_id", userID))
		return Photo{}, err
	}

	photoID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opUpload, "id_generation_failed", err, zap.String("user_id", userID))
		return Photo{}, err
	}

	photo := Photo{
		ID:           photoID,
		UserID:       userID,
		URL:          result.URL,
		DeleteHandle: result.Handle,
		CreatedAt:    s.clock().UTC(),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mainCount int64
		if err := tx.Model(&Photo{}).
			Where("user_id = ? AND is_main = ?", userID, true).
			Count(&mainCount).Error; err != nil {
			return err
		}
		photo.IsMain = mainCount == 0

		return tx.Create(&photo).Error
	})
	if txErr != nil {
		s.logError(opUpload, "save_failed", txErr,
			zap.String("user_id", userID),
			zap.String("orphaned_handle", result.Handle))
		return Photo{}, fmt.Errorf("%w: %v", ErrSaveFailed, txErr)
	}

	return photo, nil
}

// SetMain promotes the target photo to main and demotes the current one, as
// a single transaction. Promoting the current main photo is a client error.
func (s *Service) SetMain(ctx context.Context, userID, photoID string) error {
	if userID == "" {
		return errMissingUserID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target Photo
		err := tx.Where("id = ? AND user_id = ?", photoID, userID).Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhotoNotFound
		}
		if err != nil {
			s.logError(opSetMain, "select_failed", err,
				zap.String("user_id", userID), zap.String("photo_id", photoID))
			return fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
		if target.IsMain {
			return ErrAlreadyMain
		}

		if err := tx.Model(&Photo{}).
			Where("user_id = ? AND is_main = ?", userID, true).
			Update("is_main", false).Error; err != nil {
			s.logError(opSetMain, "demote_failed", err,
				zap.String("user_id", userID), zap.String("photo_id", photoID))
			return fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}

		if err := tx.Model(&Photo{}).
			Where("id = ?", target.ID).
			Update("is_main", true).Error; err != nil {
			s.logError(opSetMain, "promote_failed", err,
				zap.String("user_id", userID), zap.String("photo_id", photoID))
			return fmt.Errorf("%w: %v", ErrSaveFailed, err)
		}
		return nil
	})
}

// Delete removes a non-main photo. When the photo has a remote object the
// store delete must succeed first; on store failure the local record is
// retained so the remote object never outlives its pointer.
func (s *Service) Delete(ctx context.Context, userID, photoID string) error {
	if userID == "" {
		return errMissingUserID
	}

	photo, err := s.Get(ctx, userID, photoID)
	if err != nil {
		return err
	}
	if photo.IsMain {
		return ErrCannotDeleteMain
	}

	if photo.HasRemoteObject() {
		if err := s.store.Remove(ctx, photo.DeleteHandle); err != nil {
			s.logError(opDelete, "store_remove_failed", err,
				zap.String("user_id", userID),
				zap.String("photo_id", photoID),
				zap.String("handle", photo.DeleteHandle))
			return fmt.Errorf("%w: %v", ErrRemoteDelete, err)
		}
	}

	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", photoID, userID).
		Delete(&Photo{}).Error; err != nil {
		s.logError(opDelete, "delete_failed", err,
			zap.String("user_id", userID), zap.String("photo_id", photoID))
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// Get loads a photo scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, photoID string) (Photo, error) {
	var photo Photo
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", photoID, userID).
		Take(&photo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Photo{}, ErrPhotoNotFound
	}
	if err != nil {
		return Photo{}, err
	}
	return photo, nil
}

// ListForUser returns all photos owned by the user, oldest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Photo, error) {
	if userID == "" {
		return nil, errMissingUserID
	}
	var result []Photo
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("photos service error", attrs...)
}
