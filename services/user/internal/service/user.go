package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/micromart/services/pkg/cache"
	"github.com/micromart/services/pkg/hash"
	"github.com/micromart/services/pkg/logging"
	"github.com/micromart/services/pkg/pagination"
	"github.com/micromart/services/pkg/tokens"
	"github.com/micromart/services/services/user/internal/models"
	"github.com/micromart/services/services/user/internal/repo"
	"github.com/micromart/services/services/user/internal/transport"
)

var (
	ErrValidation   = errors.New("validation")   // 400
	ErrConflict     = errors.New("conflict")     // 409
	ErrUnauthorized = errors.New("unauthorized") // 401
	ErrNotFound     = errors.New("not found")    // 404
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type UserService struct {
	Repo      *repo.GormRepo
	Cache     cache.Store
	CacheTTL  time.Duration
	JWTSecret []byte

	Registered prometheus.Counter
	Logins     *prometheus.CounterVec

	Events EventPublisher
}

type ListResult struct {
	Data []models.User   `json:"data"`
	Meta pagination.Meta `json:"meta"`
}

// cachedUser carries the password hash that the public User JSON projection
// drops, so the login path can verify credentials from cache.
type cachedUser struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

func (s *UserService) Register(ctx context.Context, req transport.RegisterRequest) (*models.User, error) {
	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         req.Name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: pwHash,
		Status:       "active",
	}

	if err := s.Repo.CreateUserIfNotExists(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExists) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, err
	}

	if s.Registered != nil {
		s.Registered.Inc()
	}
	s.Cache.Clear()

	if s.Events != nil {
		if err := s.Events.Publish(ctx, user.ID, map[string]any{
			"type":   "user_registered",
			"userID": user.ID,
			"email":  user.Email,
		}); err != nil {
			logging.FromContext(ctx).Warn("publish user_registered failed", "error", err)
		}
	}

	return user, nil
}

// Login deliberately returns the same error for an unknown email and a wrong
// password so callers cannot enumerate accounts.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if email == "" || password == "" {
		return "", nil, fmt.Errorf("%w: missing fields: email, password", ErrValidation)
	}
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.countLogin("failure")
			return "", nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return "", nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		s.countLogin("failure")
		return "", nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	token, err := tokens.NewSessionToken(user.ID, user.Email, s.JWTSecret)
	if err != nil {
		return "", nil, err
	}

	s.countLogin("success")
	return token, user, nil
}

func (s *UserService) lookupByEmail(ctx context.Context, email string) (*models.User, error) {
	key := "user:email:" + email
	if b, ok := s.Cache.Get(key); ok {
		var cu cachedUser
		if err := json.Unmarshal(b, &cu); err == nil {
			cu.User.PasswordHash = cu.PasswordHash
			return &cu.User, nil
		}
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(cachedUser{User: *user, PasswordHash: user.PasswordHash}); err == nil {
		s.Cache.Set(key, b, s.CacheTTL)
	}
	return user, nil
}

func (s *UserService) countLogin(outcome string) {
	if s.Logins != nil {
		s.Logins.WithLabelValues(outcome).Inc()
	}
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	key := "user:" + id
	if b, ok := s.Cache.Get(key); ok {
		var u models.User
		if err := json.Unmarshal(b, &u); err == nil {
			return &u, nil
		}
	}

	user, err := s.Repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil, err
	}

	if b, err := json.Marshal(user); err == nil {
		s.Cache.Set(key, b, s.CacheTTL)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, page, limit int) (*ListResult, error) {
	offset, limit := pagination.Calculate(page, limit)
	key := fmt.Sprintf("users:page=%d&limit=%d", page, limit)

	if b, ok := s.Cache.Get(key); ok {
		var res ListResult
		if err := json.Unmarshal(b, &res); err == nil {
			return &res, nil
		}
	}

	total, items, err := s.Repo.ListUsers(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	res := &ListResult{
		Data: items,
		Meta: pagination.NewMeta(page, limit, total),
	}
	if b, err := json.Marshal(res); err == nil {
		s.Cache.Set(key, b, s.CacheTTL)
	}
	return res, nil
}
