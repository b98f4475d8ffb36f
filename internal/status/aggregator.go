// Package status builds the cross-tenant server list with live state.
package status

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"eggmanager/internal/domain"
)

type Panel interface {
	ListServers(ctx context.Context, cred domain.TenantCredential) ([]domain.ServerSummary, error)
	ServerState(ctx context.Context, cred domain.TenantCredential, serverID string) domain.ServerState
}

// Aggregator fans out panel reads across tenants and servers. The semaphore
// is shared by every Aggregate call so the in-flight bound is process-wide.
type Aggregator struct {
	panel    Panel
	inFlight *semaphore.Weighted
	log      *zap.Logger
}

func NewAggregator(panel Panel, maxInFlight int, log *zap.Logger) *Aggregator {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		panel:    panel,
		inFlight: semaphore.NewWeighted(int64(maxInFlight)),
		log:      log.Named("status"),
	}
}

// Aggregate returns every server of every active tenant, tenants in input
// order and servers in panel order. A tenant whose list call fails
// contributes nothing; the rest are unaffected.
func (a *Aggregator) Aggregate(ctx context.Context, tenants []domain.TenantCredential, includeOwnerMeta bool) []domain.ServerSummary {
	perTenant := make([][]domain.ServerSummary, len(tenants))

	var wg sync.WaitGroup
	for i, tenant := range tenants {
		if !tenant.Active() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			perTenant[i] = a.tenantServers(ctx, tenant, includeOwnerMeta)
		}()
	}
	wg.Wait()

	var out []domain.ServerSummary
	for _, servers := range perTenant {
		out = append(out, servers...)
	}
	return out
}

// States is the compact form of Aggregate used for status polling.
func (a *Aggregator) States(ctx context.Context, tenants []domain.TenantCredential) []domain.ServerStatus {
	servers := a.Aggregate(ctx, tenants, false)
	states := make([]domain.ServerStatus, len(servers))
	for i, s := range servers {
		states[i] = domain.ServerStatus{ID: s.ID, OwnerID: s.OwnerID, State: s.State}
	}
	return states
}

func (a *Aggregator) tenantServers(ctx context.Context, tenant domain.TenantCredential, includeOwnerMeta bool) []domain.ServerSummary {
	if err := a.inFlight.Acquire(ctx, 1); err != nil {
		return nil
	}
	servers, err := a.panel.ListServers(ctx, tenant)
	a.inFlight.Release(1)
	if err != nil {
		a.log.Warn("listing tenant servers failed", zap.String("owner", tenant.OwnerID), zap.Error(err))
		return nil
	}

	var wg sync.WaitGroup
	for i := range servers {
		servers[i].OwnerID = tenant.OwnerID
		if includeOwnerMeta {
			servers[i].OwnerName = tenant.OwnerName
		} else {
			servers[i].OwnerName = ""
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			servers[i].State = a.state(ctx, tenant, servers[i].ID)
		}()
	}
	wg.Wait()
	return servers
}

func (a *Aggregator) state(ctx context.Context, tenant domain.TenantCredential, serverID string) domain.ServerState {
	if err := a.inFlight.Acquire(ctx, 1); err != nil {
		return domain.StateUnknown
	}
	defer a.inFlight.Release(1)
	return a.panel.ServerState(ctx, tenant, serverID)
}
