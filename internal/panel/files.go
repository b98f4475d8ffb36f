package panel

import (
	"context"
	"net/url"

	"eggmanager/internal/domain"
)

func (c *Client) ListFiles(ctx context.Context, cred domain.TenantCredential, serverID, dir string) ([]domain.FileEntry, error) {
	if dir == "" {
		dir = "/"
	}
	var resp listResponse[fileAttributes]
	err := c.do(ctx, cred, request{
		operation: "list_files",
		method:    "GET",
		path:      "/servers/" + url.PathEscape(serverID) + "/files/list?" + url.Values{"directory": {dir}}.Encode(),
		target:    &resp,
	})
	if err != nil {
		return nil, err
	}

	files := make([]domain.FileEntry, 0, len(resp.Data))
	for _, item := range resp.Data {
		a := item.Attributes
		files = append(files, domain.FileEntry{
			Name:       a.Name,
			Mode:       a.Mode,
			Size:       a.Size,
			IsFile:     a.IsFile,
			ModifiedAt: a.ModifiedAt,
		})
	}
	return files, nil
}

func (c *Client) ReadFile(ctx context.Context, cred domain.TenantCredential, serverID, path string) (string, error) {
	var content string
	err := c.do(ctx, cred, request{
		operation: "read_file",
		method:    "GET",
		path:      "/servers/" + url.PathEscape(serverID) + "/files/contents?" + url.Values{"file": {path}}.Encode(),
		rawTarget: &content,
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) WriteFile(ctx context.Context, cred domain.TenantCredential, serverID, path, content string) domain.ActionResult {
	err := c.do(ctx, cred, request{
		operation:   "write_file",
		method:      "POST",
		path:        "/servers/" + url.PathEscape(serverID) + "/files/write?" + url.Values{"file": {path}}.Encode(),
		rawBody:     content,
		contentType: "text/plain",
	})
	return c.result("write_file", serverID, err, "file saved")
}
