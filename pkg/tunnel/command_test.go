package tunnel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type runCall struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []runCall
	fail  error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	cp := make([]string, len(args))
	copy(cp, args)
	f.calls = append(f.calls, runCall{name: name, args: cp})
	return f.fail
}

func TestCommandExistingBeforeCreate(t *testing.T) {
	p := NewCommandProvider(t.TempDir(), "skylink0")
	_, found, err := p.Existing(context.Background())
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	if found {
		t.Fatalf("expected no handle before any config was written")
	}
}

func TestCommandSetConfigThenExisting(t *testing.T) {
	dir := t.TempDir()
	p := NewCommandProvider(dir, "skylink0")
	ctx := context.Background()

	h, err := p.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := h.SetConfig(ctx, "[Interface]\nPrivateKey = x"); err != nil {
		t.Fatalf("set config: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "skylink0.conf"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(raw) != "[Interface]\nPrivateKey = x" {
		t.Fatalf("unexpected config on disk: %q", raw)
	}

	_, found, err := p.Existing(ctx)
	if err != nil {
		t.Fatalf("existing: %v", err)
	}
	if !found {
		t.Fatalf("expected handle after config was written")
	}
}

func TestCommandStartStop(t *testing.T) {
	dir := t.TempDir()
	fr := &fakeRunner{}
	p := &CommandProvider{dir: dir, iface: "skylink0", runner: fr}
	ctx := context.Background()

	h, err := p.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := h.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	confPath := filepath.Join(dir, "skylink0.conf")
	want := []runCall{
		{name: "wg-quick", args: []string{"up", confPath}},
		{name: "wg-quick", args: []string{"down", confPath}},
	}
	if !reflect.DeepEqual(fr.calls, want) {
		t.Fatalf("command mismatch: got %+v want %+v", fr.calls, want)
	}
}

func TestCommandStatus(t *testing.T) {
	fr := &fakeRunner{}
	p := &CommandProvider{dir: t.TempDir(), iface: "skylink0", runner: fr}
	h, err := p.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st, err := h.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != StatusConnected {
		t.Fatalf("got %s want connected while interface exists", st)
	}
	if len(fr.calls) != 1 || fr.calls[0].name != "ip" {
		t.Fatalf("expected one ip link query, got %+v", fr.calls)
	}

	fr.fail = errors.New("no such device")
	st, err = h.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st != StatusDisconnected {
		t.Fatalf("got %s want disconnected when interface is missing", st)
	}
}

func TestNoopLifecycle(t *testing.T) {
	p := NewNoopProvider()
	ctx := context.Background()

	_, found, _ := p.Existing(ctx)
	if found {
		t.Fatalf("expected no handle before create")
	}

	h, err := p.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := p.Create(ctx)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if h != again {
		t.Fatalf("create must reuse the singleton handle")
	}

	st, _ := h.Status(ctx)
	if st != StatusDisconnected {
		t.Fatalf("got %s want disconnected before start", st)
	}
	if err := h.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	st, _ = h.Status(ctx)
	if st != StatusConnected {
		t.Fatalf("got %s want connected after start", st)
	}
	if err := h.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	st, _ = h.Status(ctx)
	if st != StatusDisconnected {
		t.Fatalf("got %s want disconnected after stop", st)
	}
}
