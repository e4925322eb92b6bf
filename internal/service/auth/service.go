package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/libreria/reservation-service/config"
	"github.com/libreria/reservation-service/internal/errs"
	"github.com/libreria/reservation-service/internal/model"
	"github.com/libreria/reservation-service/internal/repository"
)

// Claims is the session token payload set on login and checked by the
// session middleware.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Service struct {
	log    *zap.Logger
	repo   repository.Repository
	secret []byte
	ttl    time.Duration
}

func NewService(repo repository.Repository, cfg config.Auth, log *zap.Logger) *Service {
	return &Service{
		log:    log,
		repo:   repo,
		secret: []byte(cfg.SessionSecret),
		ttl:    cfg.SessionTTL,
	}
}

func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}
	user, err := s.repo.CreateUser(ctx, req.Username, string(hash))
	if err != nil {
		return model.User{}, err
	}
	user.Password = ""
	return user, nil
}

// Login verifies the credentials and mints a session token. Unknown
// username and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (model.User, string, error) {
	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, "", errs.ErrInvalidCredentials
		}
		return model.User{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return model.User{}, "", errs.ErrInvalidCredentials
	}

	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return model.User{}, "", err
	}

	user.Password = ""
	return user, token, nil
}

// ParseSession validates a session token and returns its claims.
func (s *Service) ParseSession(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errs.ErrInvalidCredentials
	}
	return claims, nil
}
