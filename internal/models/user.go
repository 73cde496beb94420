package models

import "time"

type UserRole string

const (
	UserRoleUser       UserRole = "user"
	UserRoleAdmin      UserRole = "admin"
	UserRoleSuperAdmin UserRole = "superadmin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type User struct {
	ID                 string
	Email              string
	PasswordHash       []byte
	Name               string
	Role               UserRole
	Status             UserStatus
	Banned             bool
	BanReason          *string
	SuspendReason      *string
	Description        string
	Image              *string
	Subdomain          *string
	SubdomainShareID   *string
	DiscordVerifyToken *string
	TwoFactorEnabled   bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (u User) Suspended() bool {
	return u.Status == UserStatusSuspended
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin || u.Role == UserRoleSuperAdmin
}

type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	DeviceName       string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}
