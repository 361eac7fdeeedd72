package tenant

import "errors"

var (
	ErrNotFound      = errors.New("tenant: not found")
	ErrAlreadyExists = errors.New("tenant: already exists")
	ErrNotActive     = errors.New("tenant: not active")
)
