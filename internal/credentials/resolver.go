// Package credentials decides which tenant's panel credentials a caller may use.
package credentials

import (
	"context"
	"fmt"

	"eggmanager/internal/domain"
)

type TenantLookup interface {
	TenantByID(ctx context.Context, ownerID string) (*domain.TenantCredential, error)
	ListTenants(ctx context.Context) ([]domain.TenantCredential, error)
}

type Resolver struct {
	tenants TenantLookup
}

func NewResolver(tenants TenantLookup) *Resolver {
	return &Resolver{tenants: tenants}
}

// Resolve returns the credential to act with. The authorization check runs
// before any lookup so a rejected caller never touches the store or the panel.
func (r *Resolver) Resolve(ctx context.Context, caller domain.Caller, requestedOwnerID string) (domain.TenantCredential, error) {
	ownerID := caller.ID
	if requestedOwnerID != "" && requestedOwnerID != caller.ID {
		if !caller.IsAdmin() {
			return domain.TenantCredential{}, domain.ErrUnauthorized
		}
		ownerID = requestedOwnerID
	}

	tenant, err := r.tenants.TenantByID(ctx, ownerID)
	if err != nil {
		return domain.TenantCredential{}, fmt.Errorf("looking up tenant %s: %w", ownerID, err)
	}
	if tenant == nil || !tenant.Active() {
		return domain.TenantCredential{}, domain.ErrMissingCredentials
	}
	return *tenant, nil
}

// Tenants returns every tenant the caller may list servers for. Inactive
// tenants are kept; the aggregator skips them.
func (r *Resolver) Tenants(ctx context.Context, caller domain.Caller) ([]domain.TenantCredential, error) {
	if caller.IsAdmin() {
		tenants, err := r.tenants.ListTenants(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tenants: %w", err)
		}
		return tenants, nil
	}

	tenant, err := r.tenants.TenantByID(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up tenant %s: %w", caller.ID, err)
	}
	if tenant == nil {
		return nil, nil
	}
	return []domain.TenantCredential{*tenant}, nil
}
