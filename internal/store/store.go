package store

import (
	"context"
	"errors"

	"github.com/dockpilot/management-api/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the key
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a unique key is already taken
	ErrAlreadyExists = errors.New("record already exists")
)

// Users is the credential store consumed by the auth and admin handlers
type Users interface {
	Find(ctx context.Context, username string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
	Delete(ctx context.Context, username string) error
}

// Containers is the per-user ledger of containers created through the API
type Containers interface {
	Record(ctx context.Context, entry models.UserContainer) error
	ListByUser(ctx context.Context, username string) ([]models.UserContainer, error)
	ListAll(ctx context.Context) ([]models.UserContainer, error)
}
