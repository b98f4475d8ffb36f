package sdk

import (
	"fmt"
	"net/url"
)

func (c *Client) Login(username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.post("/api/auth/login", map[string]string{"username": username, "password": password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

func (c *Client) Me() (*User, error) {
	var user User
	err := c.get("/api/me", &user)
	return &user, err
}

func (c *Client) ListServers() ([]Server, error) {
	var servers []Server
	err := c.get("/api/servers", &servers)
	return servers, err
}

func (c *Client) ServerStates() ([]ServerStatus, error) {
	var states []ServerStatus
	err := c.get("/api/servers/status", &states)
	return states, err
}

// Power sends start, stop, restart or kill. A panel-side failure comes
// back as a result with Success false, not as an error.
func (c *Client) Power(serverID, ownerID, signal string) (*ActionResult, error) {
	var res ActionResult
	payload := map[string]string{"signal": signal, "ownerId": ownerID}
	err := c.post(fmt.Sprintf("/api/servers/%s/power", url.PathEscape(serverID)), payload, &res)
	return &res, err
}

func (c *Client) SendCommand(serverID, ownerID, command string) (*ActionResult, error) {
	var res ActionResult
	payload := map[string]string{"command": command, "ownerId": ownerID}
	err := c.post(fmt.Sprintf("/api/servers/%s/command", url.PathEscape(serverID)), payload, &res)
	return &res, err
}

func (c *Client) ListBackups(serverID, ownerID string) ([]Backup, error) {
	var backups []Backup
	err := c.get(fmt.Sprintf("/api/servers/%s/backups%s", url.PathEscape(serverID), ownerQuery(ownerID)), &backups)
	return backups, err
}

func (c *Client) CreateBackup(serverID, ownerID, name string) (*ActionResult, error) {
	var res ActionResult
	payload := map[string]string{"name": name, "ownerId": ownerID}
	err := c.post(fmt.Sprintf("/api/servers/%s/backups", url.PathEscape(serverID)), payload, &res)
	return &res, err
}

func (c *Client) DeleteBackup(serverID, ownerID, backupUUID string) (*ActionResult, error) {
	var res ActionResult
	path := fmt.Sprintf("/api/servers/%s/backups/%s%s", url.PathEscape(serverID), url.PathEscape(backupUUID), ownerQuery(ownerID))
	err := c.delete(path, &res)
	return &res, err
}

func (c *Client) ConsoleURL(serverID, ownerID string) (string, error) {
	query := url.Values{}
	if ownerID != "" {
		query.Set("owner", ownerID)
	}
	return c.GetWebSocketURL(fmt.Sprintf("/ws/servers/%s/console", url.PathEscape(serverID)), query)
}
