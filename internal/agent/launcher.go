// Package agent launches the configured agent CLI with a transcribed command.
//
// Submission is deliberately fire-and-forget: the launcher writes the command
// to a prompt file, builds a shell line that feeds it to the agent binary,
// and hands that line to a terminal (iTerm2, Terminal.app, tmux) or starts
// it directly in a new session. Once the hand-off succeeds the agent's
// lifetime belongs to whoever owns that terminal; a new capture session may
// start while the previous agent still runs.
//
// The prompt file exists to dodge shell escaping: the command text never
// appears inside the shell line, only `"$(cat <promptfile>)"` does.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/MrWong99/hark/internal/dispatch"
)

// Terminal selects where the agent process is launched.
type Terminal string

const (
	// TerminalITerm opens a new iTerm2 tab via AppleScript, falling back
	// to [TerminalApp] when iTerm is unavailable.
	TerminalITerm Terminal = "iterm"
	// TerminalApp opens a new Terminal.app window via AppleScript.
	TerminalApp Terminal = "terminal"
	// TerminalTmux opens a new window in the running tmux server.
	TerminalTmux Terminal = "tmux"
	// TerminalNone starts the shell line directly, detached in its own
	// session.
	TerminalNone Terminal = "none"
)

// IsValid reports whether t is a recognised terminal kind.
func (t Terminal) IsValid() bool {
	switch t {
	case TerminalITerm, TerminalApp, TerminalTmux, TerminalNone:
		return true
	}
	return false
}

// promptFileName is recreated under the prompt directory on every launch.
const promptFileName = ".current_prompt.txt"

// itermScript opens a tab in the current iTerm window, or a fresh window
// when none exists.
const itermScript = `tell application "iTerm"
	activate
	if (count of windows) > 0 then
		tell current window
			create tab with default profile
			tell current session
				write text "%s"
			end tell
		end tell
	else
		create window with default profile
		tell current session of current window
			write text "%s"
		end tell
	end if
end tell`

const terminalScript = `tell application "Terminal"
	activate
	do script "%s"
end tell`

// Executor runs external processes. The default implementation shells out;
// tests substitute a recorder.
type Executor interface {
	// Run executes a process and waits for it to finish.
	Run(ctx context.Context, name string, args ...string) error
	// Detach starts a process in its own session and does not wait.
	Detach(ctx context.Context, name string, args ...string) error
}

// Config wires a Launcher.
type Config struct {
	// Binary is the agent executable. Required.
	Binary string

	// WorkingDir is where the agent runs. "~" and "~/..." expand to the
	// user's home directory; empty means home.
	WorkingDir string

	// Terminal selects the launch mode. Default: [TerminalNone].
	Terminal Terminal

	// PromptDir holds the prompt file, conventionally the log directory.
	// Default: "logs".
	PromptDir string

	// Fs substitutes the filesystem for the prompt file. Default: the OS.
	Fs afero.Fs

	// Exec substitutes process execution. Default: real processes.
	Exec Executor
}

// Launcher submits commands to the agent CLI. Safe for concurrent use; each
// Submit overwrites the shared prompt file, which is fine because the shell
// line cats it before the next session can finish.
type Launcher struct {
	binary     string
	workingDir string
	terminal   Terminal
	promptDir  string
	fs         afero.Fs
	exec       Executor
}

// Compile-time interface check.
var _ dispatch.Agent = (*Launcher)(nil)

// New validates cfg and builds a Launcher.
func New(cfg Config) (*Launcher, error) {
	if cfg.Binary == "" {
		return nil, errors.New("agent: Binary is required")
	}
	switch cfg.Terminal {
	case TerminalITerm, TerminalApp, TerminalTmux:
	case "", TerminalNone:
		cfg.Terminal = TerminalNone
	default:
		return nil, fmt.Errorf("agent: unknown terminal %q", cfg.Terminal)
	}
	if cfg.PromptDir == "" {
		cfg.PromptDir = "logs"
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Exec == nil {
		cfg.Exec = osExecutor{}
	}

	dir, err := expandHome(cfg.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("agent: resolve working dir: %w", err)
	}

	return &Launcher{
		binary:     cfg.Binary,
		workingDir: dir,
		terminal:   cfg.Terminal,
		promptDir:  cfg.PromptDir,
		fs:         cfg.Fs,
		exec:       cfg.Exec,
	}, nil
}

// Submit writes command to the prompt file and launches the agent in the
// configured terminal. It returns once the hand-off is accepted or refused;
// the agent itself is never awaited.
func (l *Launcher) Submit(ctx context.Context, command string) error {
	if strings.TrimSpace(command) == "" {
		return errors.New("agent: empty command")
	}

	promptPath, err := l.writePrompt(command)
	if err != nil {
		return err
	}

	shellCmd := fmt.Sprintf(`cd "%s" && %s "$(cat "%s")"`, l.workingDir, l.binary, promptPath)

	switch l.terminal {
	case TerminalITerm:
		return l.launchITerm(ctx, shellCmd)
	case TerminalApp:
		return l.launchTerminalApp(ctx, shellCmd)
	case TerminalTmux:
		if err := l.exec.Run(ctx, "tmux", "new-window", shellCmd); err != nil {
			return fmt.Errorf("agent: tmux launch: %w", err)
		}
	default:
		if err := l.exec.Detach(ctx, "/bin/sh", "-c", shellCmd); err != nil {
			return fmt.Errorf("agent: direct launch: %w", err)
		}
	}
	return nil
}

// writePrompt recreates the prompt file with the command text.
func (l *Launcher) writePrompt(command string) (string, error) {
	if err := l.fs.MkdirAll(l.promptDir, 0o755); err != nil {
		return "", fmt.Errorf("agent: create prompt dir: %w", err)
	}
	path := filepath.Join(l.promptDir, promptFileName)
	if err := afero.WriteFile(l.fs, path, []byte(command), 0o600); err != nil {
		return "", fmt.Errorf("agent: write prompt file: %w", err)
	}
	return path, nil
}

func (l *Launcher) launchITerm(ctx context.Context, shellCmd string) error {
	esc := escapeAppleScript(shellCmd)
	err := l.exec.Run(ctx, "osascript", "-e", fmt.Sprintf(itermScript, esc, esc))
	if err == nil {
		return nil
	}
	slog.Warn("iterm launch failed, trying terminal app", "error", err)
	return l.launchTerminalApp(ctx, shellCmd)
}

func (l *Launcher) launchTerminalApp(ctx context.Context, shellCmd string) error {
	esc := escapeAppleScript(shellCmd)
	if err := l.exec.Run(ctx, "osascript", "-e", fmt.Sprintf(terminalScript, esc)); err != nil {
		return fmt.Errorf("agent: terminal launch: %w", err)
	}
	return nil
}

// escapeAppleScript escapes the shell line for embedding in a double-quoted
// AppleScript string literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// expandHome resolves "", "~" and "~/..." against the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// osExecutor runs real processes.
type osExecutor struct{}

func (osExecutor) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return err
	}
	return nil
}

// Detach ignores ctx: the launched session must survive hark's shutdown.
func (osExecutor) Detach(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap so the child never lingers as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}
