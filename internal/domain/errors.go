package domain

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email already exists")
	ErrTokenNotFound     = errors.New("token not found")
	ErrInvalidRole       = errors.New("invalid role")
)
