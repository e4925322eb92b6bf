package handler

import (
	"context"

	"github.com/libreria/reservation-service/internal/model"
	"github.com/libreria/reservation-service/internal/service/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go -package=mocks

type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (model.User, string, error)
	ParseSession(token string) (*auth.Claims, error)
}

var _ AuthService = (*auth.Service)(nil)
