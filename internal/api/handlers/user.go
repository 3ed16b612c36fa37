package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/database"
	"github.com/irfndi/prism-dashboard-go/internal/logging"
	"github.com/irfndi/prism-dashboard-go/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the subset of the users repository the auth routes need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateToken(userID, username, email string) (string, time.Time, error)
}

// UserHandler serves signup and login.
type UserHandler struct {
	users      UserStore
	tokens     TokenIssuer
	bcryptCost int
	logger     *logging.StandardLogger
}

// NewUserHandler creates a user handler hashing passwords at bcryptCost.
func NewUserHandler(users UserStore, tokens TokenIssuer, bcryptCost int, logger *logging.StandardLogger) *UserHandler {
	if logger == nil {
		logger = logging.Wrap(nil)
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserHandler{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Signup registers an account.
// @Summary Register a user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.SignupRequest true "Account"
// @Success 201 {object} models.UserResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/auth/signup [post]
func (h *UserHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()

	exists, err := h.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to check email")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check user existence"})
		return
	}
	if exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User with the email already exists"})
		return
	}

	exists, err = h.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		h.logger.WithError(err).Error("Failed to check username")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check user existence"})
		return
	}
	if exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User with the username already exists"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
	}
	if err := h.users.Create(ctx, user); err != nil {
		h.logger.WithError(err).Error("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	h.logger.WithComponent("auth").WithField("user_id", user.ID).Info("User registered")
	c.JSON(http.StatusCreated, user.ToResponse())
}

// Login exchanges credentials for an access token.
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, database.ErrUserNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password"})
		return
	}

	token, expiresAt, err := h.tokens.GenerateToken(user.ID, user.Username, user.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        user.ToResponse(),
	})
}
