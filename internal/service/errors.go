package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("invalid or expired access code")
	ErrConflict         = errors.New("conflict")
	ErrAlreadySigned    = errors.New("contract already signed by client")
)
