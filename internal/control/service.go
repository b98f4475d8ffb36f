// Package control is the entry point for every caller-facing server operation.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eggmanager/internal/console"
	"eggmanager/internal/credentials"
	"eggmanager/internal/domain"
	"eggmanager/internal/status"

	"go.uber.org/zap"
)

type Panel interface {
	status.Panel
	SetPower(ctx context.Context, cred domain.TenantCredential, serverID string, signal domain.Signal) domain.ActionResult
	SendCommand(ctx context.Context, cred domain.TenantCredential, serverID, command string) domain.ActionResult
	ListBackups(ctx context.Context, cred domain.TenantCredential, serverID string) ([]domain.Backup, error)
	CreateBackup(ctx context.Context, cred domain.TenantCredential, serverID, name string) domain.ActionResult
	DeleteBackup(ctx context.Context, cred domain.TenantCredential, serverID, backupUUID string) domain.ActionResult
	ListFiles(ctx context.Context, cred domain.TenantCredential, serverID, dir string) ([]domain.FileEntry, error)
	ReadFile(ctx context.Context, cred domain.TenantCredential, serverID, path string) (string, error)
	WriteFile(ctx context.Context, cred domain.TenantCredential, serverID, path, content string) domain.ActionResult
}

type ConsoleOpener interface {
	Open(ctx context.Context, cred domain.TenantCredential, serverID string) *console.Session
}

// Action names written to the action log.
const (
	ActionPower        = "server_power"
	ActionCommand      = "server_command"
	ActionConsole      = "server_console"
	ActionBackupCreate = "backup_create"
	ActionBackupDelete = "backup_delete"
	ActionFileWrite    = "file_write"
)

var ErrEmptyCommand = errors.New("command is required")

type Service struct {
	resolver   *credentials.Resolver
	panel      Panel
	aggregator *status.Aggregator
	consoles   ConsoleOpener
	actions    domain.ActionLogRepository
	log        *zap.Logger
}

func NewService(
	resolver *credentials.Resolver,
	panel Panel,
	aggregator *status.Aggregator,
	consoles ConsoleOpener,
	actions domain.ActionLogRepository,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		resolver:   resolver,
		panel:      panel,
		aggregator: aggregator,
		consoles:   consoles,
		actions:    actions,
		log:        log.Named("control"),
	}
}

// ResolveAndAggregate lists every server the caller may see. The error is
// only set when the tenant store itself fails.
func (s *Service) ResolveAndAggregate(ctx context.Context, caller domain.Caller) ([]domain.ServerSummary, error) {
	tenants, err := s.resolver.Tenants(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(ctx, tenants, true), nil
}

func (s *Service) ServerStates(ctx context.Context, caller domain.Caller) ([]domain.ServerStatus, error) {
	tenants, err := s.resolver.Tenants(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.aggregator.States(ctx, tenants), nil
}

// PerformPower sends one power signal. Validation and authorization
// failures come back as both a failed result and an error, before any
// upstream call. Panel failures only show up in the result.
func (s *Service) PerformPower(ctx context.Context, caller domain.Caller, targetOwnerID, serverID, signal string) (domain.ActionResult, error) {
	sig, err := domain.ParseSignal(signal)
	if err != nil {
		return domain.Failed(err), err
	}
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return domain.Failed(err), err
	}

	res := s.panel.SetPower(ctx, cred, serverID, sig)
	s.record(ctx, caller, ActionPower, fmt.Sprintf("%s %s on %s", sig, outcome(res), target(cred, serverID)))
	return res, nil
}

func (s *Service) PerformCommand(ctx context.Context, caller domain.Caller, targetOwnerID, serverID, command string) (domain.ActionResult, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return domain.Failed(ErrEmptyCommand), ErrEmptyCommand
	}
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return domain.Failed(err), err
	}

	res := s.panel.SendCommand(ctx, cred, serverID, command)
	s.record(ctx, caller, ActionCommand, fmt.Sprintf("%q %s on %s", command, outcome(res), target(cred, serverID)))
	return res, nil
}

// OpenConsole starts a console session bound to ctx. The caller owns the
// session and must close or drain it.
func (s *Service) OpenConsole(ctx context.Context, caller domain.Caller, targetOwnerID, serverID string) (*console.Session, error) {
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return nil, err
	}
	session := s.consoles.Open(ctx, cred, serverID)
	s.record(ctx, caller, ActionConsole, "opened console on "+target(cred, serverID))
	return session, nil
}

func (s *Service) ListBackups(ctx context.Context, caller domain.Caller, targetOwnerID, serverID string) ([]domain.Backup, error) {
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return nil, err
	}
	return s.panel.ListBackups(ctx, cred, serverID)
}

func (s *Service) CreateBackup(ctx context.Context, caller domain.Caller, targetOwnerID, serverID, name string) (domain.ActionResult, error) {
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return domain.Failed(err), err
	}
	res := s.panel.CreateBackup(ctx, cred, serverID, name)
	s.record(ctx, caller, ActionBackupCreate, fmt.Sprintf("backup %q %s on %s", name, outcome(res), target(cred, serverID)))
	return res, nil
}

func (s *Service) DeleteBackup(ctx context.Context, caller domain.Caller, targetOwnerID, serverID, backupUUID string) (domain.ActionResult, error) {
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return domain.Failed(err), err
	}
	res := s.panel.DeleteBackup(ctx, cred, serverID, backupUUID)
	s.record(ctx, caller, ActionBackupDelete, fmt.Sprintf("backup %s %s on %s", backupUUID, outcome(res), target(cred, serverID)))
	return res, nil
}

func (s *Service) ListFiles(ctx context.Context, caller domain.Caller, targetOwnerID, serverID, dir string) ([]domain.FileEntry, error) {
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return nil, err
	}
	return s.panel.ListFiles(ctx, cred, serverID, dir)
}

func (s *Service) ReadFile(ctx context.Context, caller domain.Caller, targetOwnerID, serverID, path string) (string, error) {
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return "", err
	}
	return s.panel.ReadFile(ctx, cred, serverID, path)
}

func (s *Service) WriteFile(ctx context.Context, caller domain.Caller, targetOwnerID, serverID, path, content string) (domain.ActionResult, error) {
	cred, err := s.resolver.Resolve(ctx, caller, targetOwnerID)
	if err != nil {
		return domain.Failed(err), err
	}
	res := s.panel.WriteFile(ctx, cred, serverID, path, content)
	s.record(ctx, caller, ActionFileWrite, fmt.Sprintf("%s %s on %s", path, outcome(res), target(cred, serverID)))
	return res, nil
}

// record never fails the operation it describes.
func (s *Service) record(ctx context.Context, caller domain.Caller, action, details string) {
	if s.actions == nil {
		return
	}
	entry := domain.ActionLog{
		Username:  caller.Username,
		IP:        caller.IP,
		Action:    action,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if err := s.actions.RecordAction(ctx, entry); err != nil {
		s.log.Warn("recording action failed", zap.String("action", action), zap.Error(err))
	}
}

func target(cred domain.TenantCredential, serverID string) string {
	return fmt.Sprintf("server %s (owner %s)", serverID, cred.OwnerID)
}

func outcome(res domain.ActionResult) string {
	if res.Success {
		return "ok"
	}
	return "failed: " + res.Message
}
