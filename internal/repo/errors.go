package repo

import "errors"

var (
	// ErrNotFound - заметки нет: не существовала, уже прочитана или истекла.
	ErrNotFound = errors.New("note not found")

	// ErrAlreadyExists - id уже занят.
	ErrAlreadyExists = errors.New("note already exists")

	// ErrUnavailable - хранилище не может обслужить запрос.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrInvalidKey - id после очистки непригоден для построения ключа или пути.
	ErrInvalidKey = errors.New("invalid storage key")
)
