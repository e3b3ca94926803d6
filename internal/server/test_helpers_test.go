package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/kindledlabs/kindled/backend/internal/auth"
	"github.com/kindledlabs/kindled/backend/internal/photos"
	"github.com/kindledlabs/kindled/backend/internal/storage"
	"github.com/kindledlabs/kindled/backend/internal/users"
	"gorm.io/gorm"
)

type fakeObjectStore struct {
	uploadCount    int
	removedHandles []string
	removeErr      error
}

func (f *fakeObjectStore) Upload(_ context.Context, _ io.Reader, _ int64, _ string) (storage.UploadResult, error) {
	f.uploadCount++
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

type testServer struct {
	handler http.Handler
	issuer  *auth.TokenIssuer
	users   *users.Service
	db      *gorm.DB
	store   *fakeObjectStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access raw connection: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&users.User{}, &photos.Photo{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "kindled-auth",
		Audience:      "kindled-api",
	})
	if err != nil {
		t.Fatalf("unexpected issuer constructor error: %v", err)
	}
	validator, err := auth.NewTokenValidator(auth.TokenValidatorConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "kindled-auth",
		Audience:      "kindled-api",
	})
	if err != nil {
		t.Fatalf("unexpected validator constructor error: %v", err)
	}

	usersService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected users service error: %v", err)
	}
	store := &fakeObjectStore{}
	photosService, err := photos.NewService(photos.ServiceConfig{
		Database:   db,
		Store:      store,
		IDProvider: photos.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("unexpected photos service error: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		TokenIssuer:    issuer,
		TokenValidator: validator,
		UsersService:   usersService,
		PhotosService:  photosService,
	})
	if err != nil {
		t.Fatalf("unexpected handler constructor error: %v", err)
	}

	return &testServer{
		handler: handler,
		issuer:  issuer,
		users:   usersService,
		db:      db,
		store:   store,
	}
}

// registerUser creates an account directly through the service and returns
// the user together with a valid bearer token.
func (ts *testServer) registerUser(t *testing.T, username string) (users.User, string) {
	t.Helper()
	user, err := ts.users.Register(context.Background(), username, "secret-password")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	token, _, err := ts.issuer.IssueToken(context.Background(), user.ID, user.Username)
	if err != nil {
		t.Fatalf("failed to issue token for %s: %v", username, err)
	}
	return user, token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, body)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	recorder := httptest.NewRecorder()
	ts.handler.ServeHTTP(recorder, request)
	return recorder
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return ts.do(t, method, path, token, body, "application/json")
}

func multipartPhoto(t *testing.T, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "photo.jpg")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func (ts *testServer) uploadPhoto(t *testing.T, userID, token, content string) photoPayload {
	t.Helper()
	body, contentType := multipartPhoto(t, content)
	recorder := ts.do(t, http.MethodPost, "/api/users/"+userID+"/photos", token, body, contentType)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected upload status %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload photoPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode photo payload: %v", err)
	}
	return payload
}
