// Package panel is a stateless client for the Pterodactyl client API. Every
// call takes the tenant credential it should act with and classifies failures
// into the domain error set instead of returning raw transport errors.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"eggmanager/internal/domain"
	"eggmanager/internal/metrics"
)

const maxErrorBody = 64 << 10

type Client struct {
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        log.Named("panel"),
	}
}

func apiBase(cred domain.TenantCredential) string {
	return strings.TrimRight(strings.TrimSpace(cred.BaseURL), "/") + "/api/client"
}

type request struct {
	operation   string
	method      string
	path        string
	body        any
	rawBody     string
	contentType string
	target      any
	rawTarget   *string
}

func (c *Client) do(ctx context.Context, cred domain.TenantCredential, req request) (err error) {
	started := time.Now()
	defer func() {
		outcome := metrics.OutcomeOK
		switch {
		case errors.Is(err, domain.ErrUpstreamRejected):
			outcome = metrics.OutcomeRejected
		case err != nil:
			outcome = metrics.OutcomeUnavailable
		}
		metrics.ObservePanel(req.operation, outcome, started)
	}()

	if !cred.Active() {
		return domain.ErrMissingCredentials
	}

	var bodyReader io.Reader
	contentType := "application/json"
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", req.operation, err)
		}
		bodyReader = bytes.NewReader(data)
	} else if req.rawBody != "" || req.contentType != "" {
		bodyReader = strings.NewReader(req.rawBody)
		contentType = req.contentType
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, apiBase(cred)+req.path, bodyReader)
	if err != nil {
		return fmt.Errorf("building %s request: %w", req.operation, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cred.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", req.operation, err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return upstreamError(resp.StatusCode, body)
	}

	switch {
	case req.rawTarget != nil:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: reading body: %v: %w", req.operation, err, domain.ErrUpstreamUnavailable)
		}
		*req.rawTarget = string(data)
	case req.target != nil:
		if err := json.NewDecoder(resp.Body).Decode(req.target); err != nil {
			return fmt.Errorf("%s: decoding response: %v: %w", req.operation, err, domain.ErrUpstreamUnavailable)
		}
	}
	return nil
}

type errorBody struct {
	Errors []struct {
		Code   string `json:"code"`
		Status string `json:"status"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// upstreamError keeps the panel's own status and detail. 5xx responses are
// still reported as rejections with their status so callers can show them.
func upstreamError(status int, body []byte) error {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		first := parsed.Errors[0]
		if s, err := strconv.Atoi(first.Status); err == nil && s != 0 {
			status = s
		}
		return &domain.UpstreamError{Status: status, Code: first.Code, Detail: first.Detail}
	}

	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = http.StatusText(status)
	}
	return &domain.UpstreamError{Status: status, Detail: detail}
}

// result folds an error into an ActionResult and logs it.
func (c *Client) result(operation, serverID string, err error, okMessage string) domain.ActionResult {
	if err != nil {
		c.log.Warn("panel action failed", zap.String("operation", operation), zap.String("server", serverID), zap.Error(err))
		return domain.Failed(err)
	}
	return domain.Succeeded(okMessage)
}
