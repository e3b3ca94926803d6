package photos

import (
	"errors"
	"time"
)

var (
	// ErrPhotoNotFound indicates the photo does not exist or is not owned by
	// the calling user.
	ErrPhotoNotFound = errors.New("photos: photo not found")
	// ErrAlreadyMain indicates the target photo is already the main photo.
	ErrAlreadyMain = errors.New("photos: photo is already the main photo")
	// ErrCannotDeleteMain guards the main photo against deletion. Promote
	// another photo first, then delete.
	ErrCannotDeleteMain = errors.New("photos: cannot delete the main photo")
	// ErrRemoteDelete indicates the object store refused to delete the
	// remote object; the local record is retained.
	ErrRemoteDelete = errors.New("photos: object store delete failed")
	// ErrSaveFailed indicates the repository rejected a write.
	ErrSaveFailed = errors.New("photos: could not persist photo state")
)

// Photo models a stored gallery entry. DeleteHandle is empty for photos with
// no backing object-store entry (seeded or default photos); such photos are
// deleted locally without any remote call.
type Photo struct {
	ID           string    `gorm:"column:id;primaryKey;size:36;not null"`
	UserID       string    `gorm:"column:user_id;size:36;not null;index:idx_photos_user,priority:1"`
	URL          string    `gorm:"column:url;size:512;not null"`
	DeleteHandle string    `gorm:"column:delete_handle;size:190;not null;default:''"`
	IsMain       bool      `gorm:"column:is_main;not null;default:false;index:idx_photos_user,priority:2"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Photo) TableName() string {
	return "photos"
}

// HasRemoteObject reports whether deleting this photo requires an object
// store call first.
func (p Photo) HasRemoteObject() bool {
	return p.DeleteHandle != ""
}
