// Package service integrates hark with the platform service manager,
// launchd on macOS and systemd on Linux, and provides the log tail behind
// `hark logs`.
package service

import (
	"errors"
	"fmt"

	"github.com/kardianos/service"
)

const (
	svcName        = "hark"
	svcDisplayName = "hark"
	svcDescription = "Voice-activated command dispatcher for coding agents."
)

// program satisfies service.Interface. Control actions never invoke it;
// the installed unit execs `hark run` directly and that process owns its
// own signal handling.
type program struct{}

func (program) Start(service.Service) error { return nil }
func (program) Stop(service.Service) error  { return nil }

// Manager installs, removes and controls the hark daemon as a user-level
// system service.
type Manager struct {
	svc service.Service
}

// NewManager binds a Manager to the platform service system. configPath,
// when non-empty, is baked into the installed unit so the daemon reads the
// same file the operator installed with.
func NewManager(configPath string) (*Manager, error) {
	conf := &service.Config{
		Name:        svcName,
		DisplayName: svcDisplayName,
		Description: svcDescription,
		Arguments:   unitArguments(configPath),
		Option: service.KeyValue{
			// The daemon needs the logged-in user's microphone, so it
			// installs as a user agent, not a system daemon.
			"UserService": true,
			"RunAtLoad":   true,
			"KeepAlive":   true,
		},
	}
	svc, err := service.New(program{}, conf)
	if err != nil {
		return nil, fmt.Errorf("service: init: %w", err)
	}
	return &Manager{svc: svc}, nil
}

// unitArguments builds the argv the service manager passes to the binary.
func unitArguments(configPath string) []string {
	args := []string{"run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return args
}

// Install registers the daemon with the service manager.
func (m *Manager) Install() error {
	if err := m.svc.Install(); err != nil {
		return fmt.Errorf("service: install: %w", err)
	}
	return nil
}

// Uninstall removes the daemon from the service manager. The daemon should
// be stopped first; launchd and systemd both refuse to remove a running
// unit cleanly otherwise.
func (m *Manager) Uninstall() error {
	if err := m.svc.Uninstall(); err != nil {
		return fmt.Errorf("service: uninstall: %w", err)
	}
	return nil
}

// Start asks the service manager to start the daemon.
func (m *Manager) Start() error {
	if err := m.svc.Start(); err != nil {
		return fmt.Errorf("service: start: %w", err)
	}
	return nil
}

// Stop asks the service manager to stop the daemon.
func (m *Manager) Stop() error {
	if err := m.svc.Stop(); err != nil {
		return fmt.Errorf("service: stop: %w", err)
	}
	return nil
}

// Restart stops and starts the daemon.
func (m *Manager) Restart() error {
	if err := m.svc.Restart(); err != nil {
		return fmt.Errorf("service: restart: %w", err)
	}
	return nil
}

// Status reports the daemon state as one of "running", "stopped",
// "not installed" or "unknown".
func (m *Manager) Status() (string, error) {
	st, err := m.svc.Status()
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed", nil
	}
	if err != nil {
		return "", fmt.Errorf("service: status: %w", err)
	}
	switch st {
	case service.StatusRunning:
		return "running", nil
	case service.StatusStopped:
		return "stopped", nil
	default:
		return "unknown", nil
	}
}

// Platform names the service system in use, e.g. "darwin-launchd" or
// "linux-systemd".
func (m *Manager) Platform() string {
	return m.svc.Platform()
}
