package agent_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/MrWong99/hark/internal/agent"
)

// execCall records one Run or Detach invocation.
type execCall struct {
	name string
	args []string
}

// execStub records process launches and fails on demand.
type execStub struct {
	mu sync.Mutex

	// runErrs returns one error per Run call, in order. Exhausted = nil.
	runErrs []error

	runs     []execCall
	detaches []execCall
}

func (e *execStub) Run(_ context.Context, name string, args ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs = append(e.runs, execCall{name: name, args: args})
	if len(e.runErrs) > 0 {
		err := e.runErrs[0]
		e.runErrs = e.runErrs[1:]
		return err
	}
	return nil
}

func (e *execStub) Detach(_ context.Context, name string, args ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detaches = append(e.detaches, execCall{name: name, args: args})
	return nil
}

func newLauncher(t *testing.T, mutate func(*agent.Config)) (*agent.Launcher, *execStub, afero.Fs) {
	t.Helper()
	ex := &execStub{}
	fs := afero.NewMemMapFs()
	cfg := agent.Config{
		Binary:     "claude",
		WorkingDir: "/work",
		Terminal:   agent.TerminalNone,
		PromptDir:  "logs",
		Fs:         fs,
		Exec:       ex,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	l, err := agent.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l, ex, fs
}

func TestNew_Validation(t *testing.T) {
	if _, err := agent.New(agent.Config{}); err == nil {
		t.Error("New without Binary did not fail")
	}
	if _, err := agent.New(agent.Config{Binary: "claude", Terminal: "screen"}); err == nil {
		t.Error("New with unknown terminal did not fail")
	}
	if _, err := agent.New(agent.Config{Binary: "claude", WorkingDir: "/work"}); err != nil {
		t.Errorf("New with defaults failed: %v", err)
	}
}

func TestSubmit_EmptyCommandRejected(t *testing.T) {
	l, ex, _ := newLauncher(t, nil)
	if err := l.Submit(context.Background(), "  \n "); err == nil {
		t.Error("Submit with blank command did not fail")
	}
	if len(ex.detaches)+len(ex.runs) != 0 {
		t.Error("blank command still launched a process")
	}
}

func TestSubmit_WritesPromptFile(t *testing.T) {
	l, _, fs := newLauncher(t, nil)

	const command = `say "hello" and stop`
	if err := l.Submit(context.Background(), command); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	data, err := afero.ReadFile(fs, "logs/.current_prompt.txt")
	if err != nil {
		t.Fatalf("read prompt file: %v", err)
	}
	// The file carries the raw text; escaping is the shell line's problem.
	if string(data) != command {
		t.Errorf("prompt file = %q, want %q", data, command)
	}
}

func TestSubmit_None_DetachesShellLine(t *testing.T) {
	l, ex, _ := newLauncher(t, nil)

	if err := l.Submit(context.Background(), "run the tests"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(ex.detaches) != 1 {
		t.Fatalf("detached %d processes, want 1", len(ex.detaches))
	}
	call := ex.detaches[0]
	if call.name != "/bin/sh" || len(call.args) != 2 || call.args[0] != "-c" {
		t.Fatalf("detach call = %v %v, want /bin/sh -c <line>", call.name, call.args)
	}
	line := call.args[1]
	for _, part := range []string{`cd "/work"`, "claude", `"$(cat "logs/.current_prompt.txt")"`} {
		if !strings.Contains(line, part) {
			t.Errorf("shell line %q missing %q", line, part)
		}
	}
}

func TestSubmit_Tmux_OpensNewWindow(t *testing.T) {
	l, ex, _ := newLauncher(t, func(cfg *agent.Config) { cfg.Terminal = agent.TerminalTmux })

	if err := l.Submit(context.Background(), "run the tests"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(ex.runs) != 1 {
		t.Fatalf("ran %d processes, want 1", len(ex.runs))
	}
	call := ex.runs[0]
	if call.name != "tmux" || len(call.args) != 2 || call.args[0] != "new-window" {
		t.Fatalf("tmux call = %v %v, want tmux new-window <line>", call.name, call.args)
	}
	if !strings.Contains(call.args[1], `cd "/work"`) {
		t.Errorf("tmux shell line %q missing workdir", call.args[1])
	}
}

func TestSubmit_TerminalApp_RunsAppleScript(t *testing.T) {
	l, ex, _ := newLauncher(t, func(cfg *agent.Config) { cfg.Terminal = agent.TerminalApp })

	if err := l.Submit(context.Background(), "run the tests"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(ex.runs) != 1 {
		t.Fatalf("ran %d processes, want 1", len(ex.runs))
	}
	call := ex.runs[0]
	if call.name != "osascript" || len(call.args) != 2 || call.args[0] != "-e" {
		t.Fatalf("call = %v %v, want osascript -e <script>", call.name, call.args)
	}
	script := call.args[1]
	if !strings.Contains(script, `tell application "Terminal"`) {
		t.Errorf("script %q is not a Terminal.app script", script)
	}
	// The shell line's quotes must be escaped inside the script literal.
	if !strings.Contains(script, `do script "cd \"/work\"`) {
		t.Errorf("script %q does not escape the shell line", script)
	}
}

func TestSubmit_ITerm_FallsBackToTerminalApp(t *testing.T) {
	l, ex, _ := newLauncher(t, func(cfg *agent.Config) {
		cfg.Terminal = agent.TerminalITerm
	})
	ex.runErrs = []error{errors.New("iTerm got an error: not running")}

	if err := l.Submit(context.Background(), "run the tests"); err != nil {
		t.Fatalf("Submit with fallback: %v", err)
	}

	if len(ex.runs) != 2 {
		t.Fatalf("ran %d processes, want 2 (iterm then terminal)", len(ex.runs))
	}
	if !strings.Contains(ex.runs[0].args[1], `tell application "iTerm"`) {
		t.Errorf("first script %q is not an iTerm script", ex.runs[0].args[1])
	}
	if !strings.Contains(ex.runs[1].args[1], `tell application "Terminal"`) {
		t.Errorf("fallback script %q is not a Terminal.app script", ex.runs[1].args[1])
	}
}

func TestSubmit_ITerm_FallbackFailureSurfaces(t *testing.T) {
	errTerm := errors.New("osascript missing")
	l, ex, _ := newLauncher(t, func(cfg *agent.Config) {
		cfg.Terminal = agent.TerminalITerm
	})
	ex.runErrs = []error{errors.New("no iTerm"), errTerm}

	err := l.Submit(context.Background(), "run the tests")
	if !errors.Is(err, errTerm) {
		t.Errorf("Submit error = %v, want wrapped fallback error", err)
	}
}

func TestSubmit_ExpandsHomeWorkingDir(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	l, ex, _ := newLauncher(t, func(cfg *agent.Config) { cfg.WorkingDir = "~/projects" })

	if err := l.Submit(context.Background(), "run the tests"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if line := ex.detaches[0].args[1]; !strings.Contains(line, `cd "/home/tester/projects"`) {
		t.Errorf("shell line %q did not expand ~", line)
	}
}
