package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUsernameTaken indicates the requested username already exists.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrSaveFailed indicates the repository rejected a write.
	ErrSaveFailed = errors.New("users: could not persist user")

	errMissingUsername = errors.New("users: username required")
	errMissingPassword = errors.New("users: password required")
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages account registration, credential verification and profile
// updates.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// Register creates an account with a hashed credential. The username is
// lowercased before the uniqueness check so lookups stay case-insensitive.
func (s *Service) Register(ctx context.Context, username, password string) (User, error) {
	normalized := NormalizeUsername(username)
	if normalized == "" {
		return User{}, errMissingUsername
	}
	if password == "" {
		return User{}, errMissingPassword
	}

	var existing User
	err := s.db.WithContext(ctx).Where("username = ?", normalized).Take(&existing).Error
	if err == nil {
		return User{}, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           id.String(),
		Username:     normalized,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return user, nil
}

// Authenticate verifies a username/password pair. Unknown usernames and wrong
// passwords return the same error so callers cannot probe which part failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	normalized := NormalizeUsername(username)
	if normalized == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	var user User
	err := s.db.WithContext(ctx).Where("username = ?", normalized).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Get loads a user by its identifier.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateProfile merges the patch onto the stored record. Only display fields
// are merged; identity and credential fields never change through this path.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if patch.DisplayName != nil {
		user.DisplayName = *patch.DisplayName
	}
	if patch.City != nil {
		user.City = *patch.City
	}
	if patch.Country != nil {
		user.Country = *patch.Country
	}
	if patch.Introduction != nil {
		user.Introduction = *patch.Introduction
	}
	if patch.LookingFor != nil {
		user.LookingFor = *patch.LookingFor
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}
