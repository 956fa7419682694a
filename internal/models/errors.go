package models

import "errors"

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidCode           = errors.New("invalid or expired reset code")
	ErrUserNotFound          = errors.New("user not found")
	ErrNotFound              = errors.New("memory not found")
	ErrInvalidEmotion        = errors.New("unknown emotion")
	ErrInvalidTag            = errors.New("unknown tag")
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
)
