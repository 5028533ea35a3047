package model

import "time"

// Note - серверная запись заметки для SQL‑хранилища. Payload - зашифрованный конверт как есть.
type Note struct {
	ID        string    `gorm:"primaryKey;size:128"`
	Payload   []byte    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}
