package errs

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("book not found")
	ErrAlreadyReserved    = errors.New("book is already reserved")
	ErrUnauthorized       = errors.New("unauthorized action")
	ErrUserExists         = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
