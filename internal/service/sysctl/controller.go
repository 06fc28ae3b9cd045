package sysctl

import (
	"context"
	"fmt"

	"github.com/kardianos/service"

	"github.com/gamewarden/gamewarden/internal/config"
	"github.com/gamewarden/gamewarden/internal/logger"
)

// Status describes the managed service's lifecycle state.
type Status int

const (
	// StatusUnknown means the service manager could not report a state.
	StatusUnknown Status = iota
	// StatusRunning means the managed process is up.
	StatusRunning
	// StatusStopped means the managed process is down.
	StatusStopped
)

// Controller wraps synchronous stop/start semantics of the host service
// manager. The managed process itself is owned by the operating
// environment, not by this module.
type Controller interface {
	// Stop halts the managed service and returns once it reports stopped.
	Stop(ctx context.Context) error
	// Start launches the managed service.
	Start(ctx context.Context) error
	// Status reports the current lifecycle state.
	Status(ctx context.Context) (Status, error)
}

// noopProgram satisfies the service runtime interface for a unit gamewarden
// controls but never runs in-process.
type noopProgram struct{}

func (noopProgram) Start(service.Service) error { return nil }
func (noopProgram) Stop(service.Service) error  { return nil }

// Manager controls an installed unit through the host service manager
// (systemd on the hosts this tool targets).
type Manager struct {
	svc  service.Service
	name string
}

// NewManager binds a Manager to the configured unit.
func NewManager(cfg *config.Config) (*Manager, error) {
	svcConfig := &service.Config{
		Name:             cfg.ServiceName,
		DisplayName:      cfg.ServiceName,
		Description:      "Game server managed by gamewarden",
		UserName:         cfg.ServiceUser,
		Executable:       cfg.LauncherPath(),
		WorkingDirectory: cfg.ServerDir,
	}

	svc, err := service.New(noopProgram{}, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("bind service %s: %w", cfg.ServiceName, err)
	}

	return &Manager{svc: svc, name: cfg.ServiceName}, nil
}

// Stop halts the managed unit.
func (m *Manager) Stop(ctx context.Context) error {
	logger.InfoKV(ctx, "Stopping service", "service", m.name)

	if err := m.svc.Stop(); err != nil {
		return fmt.Errorf("stop service %s: %w", m.name, err)
	}

	return nil
}

// Start launches the managed unit.
func (m *Manager) Start(ctx context.Context) error {
	logger.InfoKV(ctx, "Starting service", "service", m.name)

	if err := m.svc.Start(); err != nil {
		return fmt.Errorf("start service %s: %w", m.name, err)
	}

	return nil
}

// Status reports the unit's lifecycle state.
func (m *Manager) Status(_ context.Context) (Status, error) {
	status, err := m.svc.Status()
	if err != nil {
		return StatusUnknown, fmt.Errorf("status of service %s: %w", m.name, err)
	}

	switch status {
	case service.StatusRunning:
		return StatusRunning, nil
	case service.StatusStopped:
		return StatusStopped, nil
	default:
		return StatusUnknown, nil
	}
}

// Install registers the unit with the host service manager.
func (m *Manager) Install(ctx context.Context) error {
	logger.InfoKV(ctx, "Installing service unit", "service", m.name)

	if err := m.svc.Install(); err != nil {
		return fmt.Errorf("install service %s: %w", m.name, err)
	}

	return nil
}

// Uninstall removes the unit from the host service manager.
func (m *Manager) Uninstall(ctx context.Context) error {
	logger.InfoKV(ctx, "Uninstalling service unit", "service", m.name)

	if err := m.svc.Uninstall(); err != nil {
		return fmt.Errorf("uninstall service %s: %w", m.name, err)
	}

	return nil
}
