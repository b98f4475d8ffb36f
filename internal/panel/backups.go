package panel

import (
	"context"
	"fmt"
	"net/url"

	"eggmanager/internal/domain"
)

func (c *Client) ListBackups(ctx context.Context, cred domain.TenantCredential, serverID string) ([]domain.Backup, error) {
	var resp listResponse[backupAttributes]
	err := c.do(ctx, cred, request{
		operation: "list_backups",
		method:    "GET",
		path:      "/servers/" + url.PathEscape(serverID) + "/backups",
		target:    &resp,
	})
	if err != nil {
		return nil, err
	}

	backups := make([]domain.Backup, 0, len(resp.Data))
	for _, item := range resp.Data {
		a := item.Attributes
		backups = append(backups, domain.Backup{
			UUID:        a.UUID,
			Name:        a.Name,
			Bytes:       a.Bytes,
			Successful:  a.IsSuccessful,
			CreatedAt:   a.CreatedAt,
			CompletedAt: a.CompletedAt,
		})
	}
	return backups, nil
}

func (c *Client) CreateBackup(ctx context.Context, cred domain.TenantCredential, serverID, name string) domain.ActionResult {
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}
	err := c.do(ctx, cred, request{
		operation: "create_backup",
		method:    "POST",
		path:      "/servers/" + url.PathEscape(serverID) + "/backups",
		body:      body,
	})
	return c.result("create_backup", serverID, err, "backup started")
}

func (c *Client) DeleteBackup(ctx context.Context, cred domain.TenantCredential, serverID, backupUUID string) domain.ActionResult {
	err := c.do(ctx, cred, request{
		operation: "delete_backup",
		method:    "DELETE",
		path:      fmt.Sprintf("/servers/%s/backups/%s", url.PathEscape(serverID), url.PathEscape(backupUUID)),
	})
	return c.result("delete_backup", serverID, err, "backup deleted")
}
