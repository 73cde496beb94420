package repository

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrAttributeNotFound = errors.New("attribute not found")
	ErrTagNotFound       = errors.New("tag not found")
	ErrShareNotFound     = errors.New("share not found")
	ErrSecretNotFound    = errors.New("two factor secret not found")

	ErrEmailTaken     = errors.New("email already registered")
	ErrSubdomainTaken = errors.New("subdomain already claimed")
	ErrShareIDTaken   = errors.New("share id already in use")
)
