package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tenant is the read-only view of a tenant row. The host application owns
// tenant creation and deletion; this package only loads them.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store loads tenants from the application's persistence layer.
type Store interface {
	// Exists reports whether a tenant with the given id exists.
	Exists(ctx context.Context, id string) (bool, error)

	// GetByID returns ErrNotFound if no tenant matches the id.
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// GetBySubdomain returns ErrNotFound if no tenant uses the subdomain.
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
}

// ValidateExists confirms that id names an existing tenant.
// A blank id means "no tenant requested" and is always valid.
func ValidateExists(ctx context.Context, store Store, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}

	ok, err := store.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("tenant lookup %q: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: tenant with id '%s'", ErrNotFound, id)
	}
	return nil
}

// IsNotFound reports whether err means the tenant does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
