package service

import (
	"FadNote/internal/repo"
	"errors"
)

// Ошибки валидации определяются до обращения к хранилищу.
var (
	ErrInvalidID    = errors.New("invalid note id")
	ErrEmptyPayload = errors.New("empty note")
	ErrTooLarge     = errors.New("note too large")
	ErrInvalidTTL   = errors.New("invalid ttl")
)

// Ошибки хранилища пробрасываются как есть, чтобы вызывающие сравнивали их через errors.Is.
var (
	ErrNotFound      = repo.ErrNotFound
	ErrAlreadyExists = repo.ErrAlreadyExists
	ErrUnavailable   = repo.ErrUnavailable
)
