package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/database"
	"github.com/irfndi/prism-dashboard-go/internal/middleware"
	"github.com/irfndi/prism-dashboard-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func newUserRouter(store UserStore, auth *middleware.AuthMiddleware) *gin.Engine {
	h := NewUserHandler(store, auth, bcrypt.MinCost, nil)
	router := gin.New()
	router.POST("/signup", h.Signup)
	router.POST("/login", h.Login)
	return router
}

func postJSON(router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUserHandler_Signup(t *testing.T) {
	auth := middleware.NewAuthMiddleware("secret", time.Hour)
	body := map[string]string{"username": "john123", "email": "John@Example.com", "password": "john123@secret"}

	t.Run("creates the account", func(t *testing.T) {
		store := &MockUserStore{}
		store.On("ExistsByEmail", mock.Anything, "john@example.com").Return(false, nil)
		store.On("ExistsByUsername", mock.Anything, "john123").Return(false, nil)
		store.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
			Run(func(args mock.Arguments) {
				u := args.Get(1).(*models.User)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("john123@secret")))
				u.ID = "user-1"
			}).
			Return(nil)

		w := postJSON(newUserRouter(store, auth), "/signup", body)
		assert.Equal(t, http.StatusCreated, w.Code)

		var response models.UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "user-1", response.ID)
		assert.Equal(t, "john123", response.Username)
		assert.Equal(t, "john@example.com", response.Email)
		assert.NotContains(t, w.Body.String(), "password")
		store.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		store := &MockUserStore{}
		store.On("ExistsByEmail", mock.Anything, "john@example.com").Return(true, nil)

		w := postJSON(newUserRouter(store, auth), "/signup", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "User with the email already exists")
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate username", func(t *testing.T) {
		store := &MockUserStore{}
		store.On("ExistsByEmail", mock.Anything, "john@example.com").Return(false, nil)
		store.On("ExistsByUsername", mock.Anything, "john123").Return(true, nil)

		w := postJSON(newUserRouter(store, auth), "/signup", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "User with the username already exists")
	})

	t.Run("short password", func(t *testing.T) {
		store := &MockUserStore{}
		w := postJSON(newUserRouter(store, auth), "/signup",
			map[string]string{"username": "john123", "email": "john@example.com", "password": "short"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("store failure", func(t *testing.T) {
		store := &MockUserStore{}
		store.On("ExistsByEmail", mock.Anything, "john@example.com").Return(false, errors.New("db down"))

		w := postJSON(newUserRouter(store, auth), "/signup", body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}

func TestUserHandler_Login(t *testing.T) {
	auth := middleware.NewAuthMiddleware("secret", time.Hour)
	hash, err := bcrypt.GenerateFromPassword([]byte("john123@secret"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: "user-1", Username: "john123", Email: "john@example.com", PasswordHash: string(hash)}

	t.Run("issues a token", func(t *testing.T) {
		store := &MockUserStore{}
		store.On("GetByEmail", mock.Anything, "john@example.com").Return(user, nil)

		w := postJSON(newUserRouter(store, auth), "/login",
			map[string]string{"email": "john@example.com", "password": "john123@secret"})
		require.Equal(t, http.StatusOK, w.Code)

		var response models.LoginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "john123", response.User.Username)
		assert.True(t, response.ExpiresAt.After(time.Now()))

		claims, err := auth.ValidateToken(response.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
	})

	tests := []struct {
		name     string
		password string
		user     *models.User
		err      error
		status   int
	}{
		{name: "wrong password", password: "nope-nope", user: user, status: http.StatusBadRequest},
		{name: "unknown user", password: "john123@secret", err: database.ErrUserNotFound, status: http.StatusBadRequest},
		{name: "store failure", password: "john123@secret", err: errors.New("db down"), status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &MockUserStore{}
			store.On("GetByEmail", mock.Anything, "john@example.com").Return(tc.user, tc.err)

			w := postJSON(newUserRouter(store, auth), "/login",
				map[string]string{"email": "john@example.com", "password": tc.password})
			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "accessToken")
		})
	}

	t.Run("missing fields", func(t *testing.T) {
		w := postJSON(newUserRouter(&MockUserStore{}, auth), "/login", map[string]string{"email": "john@example.com"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
