package models

import "time"

type Tag struct {
	ID        int64
	UserID    string
	Name      string
	Color     *string
	TextColor *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
