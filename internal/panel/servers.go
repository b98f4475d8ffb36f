package panel

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"eggmanager/internal/domain"
)

// maxPages caps how far ListServers follows panel pagination.
const maxPages = 50

// ListServers returns the tenant's servers in panel order. State is left
// empty; callers fill it from ServerState.
func (c *Client) ListServers(ctx context.Context, cred domain.TenantCredential) ([]domain.ServerSummary, error) {
	var servers []domain.ServerSummary
	for page := 1; page <= maxPages; page++ {
		var resp listResponse[serverAttributes]
		q := url.Values{"include": {"allocations"}}
		if page > 1 {
			q.Set("page", fmt.Sprint(page))
		}
		err := c.do(ctx, cred, request{
			operation: "list_servers",
			method:    "GET",
			path:      "/?" + q.Encode(),
			target:    &resp,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Data {
			servers = append(servers, toSummary(item.Attributes, cred.OwnerID))
		}
		if resp.Meta.Pagination.CurrentPage >= resp.Meta.Pagination.TotalPages {
			break
		}
	}
	return servers, nil
}

func toSummary(a serverAttributes, ownerID string) domain.ServerSummary {
	status := "unknown"
	if a.Status != nil && *a.Status != "" {
		status = *a.Status
	}
	ip, port := defaultAllocation(a.Relationships.Allocations)
	return domain.ServerSummary{
		ID:      a.Identifier,
		Name:    a.Name,
		Node:    a.Node,
		Status:  status,
		UUID:    a.UUID,
		IP:      ip,
		Port:    port,
		OwnerID: ownerID,
	}
}

// defaultAllocation picks the allocation flagged default, else the first one.
func defaultAllocation(allocs listResponse[allocationAttributes]) (string, int) {
	if len(allocs.Data) == 0 {
		return "Unknown", 0
	}
	chosen := allocs.Data[0].Attributes
	for _, a := range allocs.Data {
		if a.Attributes.IsDefault {
			chosen = a.Attributes
			break
		}
	}
	ip := chosen.IP
	if chosen.IPAlias != nil && *chosen.IPAlias != "" {
		ip = *chosen.IPAlias
	}
	return ip, chosen.Port
}

// ServerState never fails: any error degrades to StateUnknown.
func (c *Client) ServerState(ctx context.Context, cred domain.TenantCredential, serverID string) domain.ServerState {
	var resp resourcesResponse
	err := c.do(ctx, cred, request{
		operation: "server_state",
		method:    "GET",
		path:      "/servers/" + url.PathEscape(serverID) + "/resources",
		target:    &resp,
	})
	if err != nil {
		c.log.Debug("state read failed", zap.String("server", serverID), zap.Error(err))
		return domain.StateUnknown
	}
	return domain.ParseServerState(resp.Attributes.CurrentState)
}

func (c *Client) SetPower(ctx context.Context, cred domain.TenantCredential, serverID string, signal domain.Signal) domain.ActionResult {
	err := c.do(ctx, cred, request{
		operation: "set_power",
		method:    "POST",
		path:      "/servers/" + url.PathEscape(serverID) + "/power",
		body:      map[string]string{"signal": string(signal)},
	})
	return c.result("set_power", serverID, err, fmt.Sprintf("signal %s sent", signal))
}

func (c *Client) SendCommand(ctx context.Context, cred domain.TenantCredential, serverID, command string) domain.ActionResult {
	err := c.do(ctx, cred, request{
		operation: "send_command",
		method:    "POST",
		path:      "/servers/" + url.PathEscape(serverID) + "/command",
		body:      map[string]string{"command": command},
	})
	return c.result("send_command", serverID, err, "command sent")
}

// ConsoleHandshake fetches the websocket URL and token for a console. Panel
// rejections come back as *domain.UpstreamError with the panel's status.
func (c *Client) ConsoleHandshake(ctx context.Context, cred domain.TenantCredential, serverID string) (domain.ConsoleHandshake, error) {
	var resp websocketResponse
	err := c.do(ctx, cred, request{
		operation: "console_handshake",
		method:    "GET",
		path:      "/servers/" + url.PathEscape(serverID) + "/websocket",
		target:    &resp,
	})
	if err != nil {
		return domain.ConsoleHandshake{}, err
	}
	if resp.Data.Socket == "" || resp.Data.Token == "" {
		return domain.ConsoleHandshake{}, fmt.Errorf("console_handshake: empty socket details: %w", domain.ErrUpstreamUnavailable)
	}
	return domain.ConsoleHandshake{SocketURL: resp.Data.Socket, Token: resp.Data.Token}, nil
}
