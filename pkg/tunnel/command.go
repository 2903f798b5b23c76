package tunnel

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Runner abstracts command execution so the command backend is testable
// without wg-quick installed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (r execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v failed: %w (%s)", name, args, err, string(out))
	}
	return nil
}

// CommandProvider manages a single wg-quick tunnel whose configuration
// file lives under dir as <iface>.conf.
type CommandProvider struct {
	dir    string
	iface  string
	runner Runner
}

func NewCommandProvider(dir string, iface string) *CommandProvider {
	return &CommandProvider{dir: dir, iface: iface, runner: execRunner{}}
}

func (p *CommandProvider) confPath() string {
	return filepath.Join(p.dir, p.iface+".conf")
}

func (p *CommandProvider) Existing(_ context.Context) (Handle, bool, error) {
	info, err := os.Stat(p.confPath())
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("tunnel config stat: %w", err)
	}
	if info.IsDir() {
		return nil, false, fmt.Errorf("tunnel config path is a directory: %s", p.confPath())
	}
	return &commandHandle{provider: p}, true, nil
}

func (p *CommandProvider) Create(_ context.Context) (Handle, error) {
	if p.iface == "" {
		return nil, fmt.Errorf("tunnel interface name is required")
	}
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return nil, fmt.Errorf("tunnel config mkdir: %w", err)
	}
	return &commandHandle{provider: p}, nil
}

type commandHandle struct {
	provider *CommandProvider
}

func (h *commandHandle) SetConfig(_ context.Context, config string) error {
	if err := os.MkdirAll(h.provider.dir, 0o700); err != nil {
		return fmt.Errorf("tunnel config mkdir: %w", err)
	}
	if err := os.WriteFile(h.provider.confPath(), []byte(config), 0o600); err != nil {
		return fmt.Errorf("tunnel config write: %w", err)
	}
	return nil
}

func (h *commandHandle) Start(ctx context.Context) error {
	return h.provider.runner.Run(ctx, "wg-quick", "up", h.provider.confPath())
}

func (h *commandHandle) Stop(ctx context.Context) error {
	return h.provider.runner.Run(ctx, "wg-quick", "down", h.provider.confPath())
}

// Status reports connected while the interface exists. wg-quick offers
// no finer-grained state; transient states never surface here.
func (h *commandHandle) Status(ctx context.Context) (Status, error) {
	if err := h.provider.runner.Run(ctx, "ip", "link", "show", "dev", h.provider.iface); err != nil {
		return StatusDisconnected, nil
	}
	return StatusConnected, nil
}
