package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/kindledlabs/kindled/backend/internal/storage"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type fakeObjectStore struct {
	uploadCount    int
	uploadedSizes  []int64
	removedHandles []string
	uploadErr      error
	removeErr      error
}

func (f *fakeObjectStore) Upload(_ context.Context, _ io.Reader, size int64, _ string) (storage.UploadResult, error) {
	if f.uploadErr != nil {
		return storage.UploadResult{}, f.uploadErr
	}
	f.uploadCount++
	f.uploadedSizes = append(f.uploadedSizes, size)
	return storage.UploadResult{
		URL:    fmt.Sprintf("https://img.test/photos/%d", f.uploadCount),
		Handle: fmt.Sprintf("handle-%d", f.uploadCount),
	}, nil
}

func (f *fakeObjectStore) Remove(_ context.Context, handle string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removedHandles = append(f.removedHandles, handle)
	return nil
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access raw connection: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Photo{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, ids []string) (*Service, *gorm.DB, *fakeObjectStore) {
	t.Helper()
	db := newTestDatabase(t)
	store := &fakeObjectStore{}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Store:      store,
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("unexpected service constructor error: %v", err)
	}
	return service, db, store
}

func mustUpload(t *testing.T, service *Service, userID, payload string) Photo {
	t.Helper()
	photo, err := service.Upload(context.Background(), userID, strings.NewReader(payload), int64(len(payload)), "image/jpeg")
	if err != nil {
		t.Fatalf("unexpected upload error: %v", err)
	}
	return photo
}

func countMainPhotos(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&Photo{}).Where("user_id = ? AND is_main = ?", userID, true).Count(&count).Error; err != nil {
		t.Fatalf("failed to count main photos: %v", err)
	}
	return count
}

func loadPhoto(t *testing.T, db *gorm.DB, photoID string) Photo {
	t.Helper()
	var photo Photo
	if err := db.Where("id = ?", photoID).Take(&photo).Error; err != nil {
		t.Fatalf("failed to load photo %s: %v", photoID, err)
	}
	return photo
}
