package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kindledlabs/kindled/backend/internal/auth"
	"github.com/kindledlabs/kindled/backend/internal/photos"
	"github.com/kindledlabs/kindled/backend/internal/users"
	"go.uber.org/zap"
)

const claimsContextKey = "kindled_claims"

var (
	errMissingTokenIssuer    = errors.New("token issuer dependency required")
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingUsersService   = errors.New("users service dependency required")
	errMissingPhotosService  = errors.New("photos service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenIssuer mints access tokens for verified credentials.
type TokenIssuer interface {
	IssueToken(ctx context.Context, userID, username string) (string, int64, error)
}

// TokenValidator checks bearer tokens and returns the asserted identity.
type TokenValidator interface {
	ValidateToken(token string) (auth.Claims, error)
}

// Dependencies wires the HTTP surface to its collaborators.
type Dependencies struct {
	TokenIssuer    TokenIssuer
	TokenValidator TokenValidator
	UsersService   *users.Service
	PhotosService  *photos.Service
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router with auth and photo routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenIssuer == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.TokenValidator == nil {
		return nil, errMissingTokenValidator
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.PhotosService == nil {
		return nil, errMissingPhotosService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:    deps.TokenIssuer,
		validator: deps.TokenValidator,
		users:     deps.UsersService,
		photos:    deps.PhotosService,
		logger:    logger,
	}

	router.POST("/api/auth/register", handler.handleRegister)
	router.POST("/api/auth/login", handler.handleLogin)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/users/:userId", handler.handleGetUser)
	protected.GET("/users/:userId/photos", handler.handleListPhotos)
	protected.GET("/users/:userId/photos/:photoId", handler.handleGetPhoto)

	owned := protected.Group("/")
	owned.Use(handler.requireOwner)
	owned.PUT("/users/:userId", handler.handleUpdateUser)
	owned.POST("/users/:userId/photos", handler.handleUploadPhoto)
	owned.POST("/users/:userId/photos/:photoId/setMain", handler.handleSetMainPhoto)
	owned.DELETE("/users/:userId/photos/:photoId", handler.handleDeletePhoto)

	return router, nil
}

type httpHandler struct {
	tokens    TokenIssuer
	validator TokenValidator
	users     *users.Service
	photos    *photos.Service
	logger    *zap.Logger
}

type credentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil ||
		strings.TrimSpace(request.Username) == "" || request.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), request.Username, request.Password)
	if errors.Is(err, users.ErrUsernameTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username already exists"})
		return
	}
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request credentialsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		// Same response for unknown username and wrong password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), user.ID, user.Username)
	if err != nil {
		h.logger.Error("failed to issue access token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type profilePayload struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	City         string `json:"city"`
	Country      string `json:"country"`
	Introduction string `json:"introduction"`
	LookingFor   string `json:"looking_for"`
}

func (h *httpHandler) handleGetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("userId"))
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	c.JSON(http.StatusOK, profilePayload{
		ID:           user.ID,
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		City:         user.City,
		Country:      user.Country,
		Introduction: user.Introduction,
		LookingFor:   user.LookingFor,
	})
}

type profilePatchPayload struct {
	DisplayName  *string `json:"display_name"`
	City         *string `json:"city"`
	Country      *string `json:"country"`
	Introduction *string `json:"introduction"`
	LookingFor   *string `json:"looking_for"`
}

func (h *httpHandler) handleUpdateUser(c *gin.Context) {
	var request profilePatchPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.users.UpdateProfile(c.Request.Context(), c.Param("userId"), users.ProfilePatch{
		DisplayName:  request.DisplayName,
		City:         request.City,
		Country:      request.Country,
		Introduction: request.Introduction,
		LookingFor:   request.LookingFor,
	})
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("profile update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

type photoPayload struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	IsMain    bool      `json:"is_main"`
	CreatedAt time.Time `json:"created_at"`
}

func photoToPayload(photo photos.Photo) photoPayload {
	return photoPayload{
		ID:        photo.ID,
		URL:       photo.URL,
		IsMain:    photo.IsMain,
		CreatedAt: photo.CreatedAt,
	}
}

func (h *httpHandler) handleUploadPhoto(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	defer file.Close()

	photo, err := h.photos.Upload(
		c.Request.Context(),
		c.Param("userId"),
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		h.logger.Error("photo upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add the photo"})
		return
	}

	c.JSON(http.StatusCreated, photoToPayload(photo))
}

func (h *httpHandler) handleListPhotos(c *gin.Context) {
	list, err := h.photos.ListForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.logger.Error("photo listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	payload := make([]photoPayload, 0, len(list))
	for _, photo := range list {
		payload = append(payload, photoToPayload(photo))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetPhoto(c *gin.Context) {
	photo, err := h.photos.Get(c.Request.Context(), c.Param("userId"), c.Param("photoId"))
	if errors.Is(err, photos.ErrPhotoNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}
	if err != nil {
		h.logger.Error("photo lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}

	c.JSON(http.StatusOK, photoToPayload(photo))
}

func (h *httpHandler) handleSetMainPhoto(c *gin.Context) {
	err := h.photos.SetMain(c.Request.Context(), c.Param("userId"), c.Param("photoId"))
	switch {
	case errors.Is(err, photos.ErrPhotoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
	case errors.Is(err, photos.ErrAlreadyMain):
		c.JSON(http.StatusBadRequest, gin.H{"error": "this is already the main photo"})
	case err != nil:
		h.logger.Error("set main photo failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not set photo to main"})
	default:
		c.Status(http.StatusNoContent)
	}
}

func (h *httpHandler) handleDeletePhoto(c *gin.Context) {
	err := h.photos.Delete(c.Request.Context(), c.Param("userId"), c.Param("photoId"))
	switch {
	case errors.Is(err, photos.ErrPhotoNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
	case errors.Is(err, photos.ErrCannotDeleteMain):
		c.JSON(http.StatusBadRequest, gin.H{"error": "you cannot delete your main photo"})
	case errors.Is(err, photos.ErrRemoteDelete):
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to delete the photo"})
	case err != nil:
		h.logger.Error("photo delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete the photo"})
	default:
		c.Status(http.StatusOK)
	}
}

// authorizeRequest validates the bearer token and stashes the asserted
// identity for downstream handlers.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(claimsContextKey, claims)
	c.Next()
}

// requireOwner rejects requests whose token subject differs from the user id
// in the path. There is no administrative override.
func (h *httpHandler) requireOwner(c *gin.Context) {
	claims, ok := requestClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if claims.UserID != c.Param("userId") {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func requestClaims(c *gin.Context) (auth.Claims, bool) {
	value, exists := c.Get(claimsContextKey)
	if !exists {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}
