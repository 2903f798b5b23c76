package app

import (
	"context"
	"net/http"
	"testing"

	"skylink/pkg/proto"
)

func newTestSelector(t *testing.T, catalogPayload string, seed int64) (*Selector, *Bus) {
	t.Helper()
	srv := newCatalogServer(t, catalogPayload, http.StatusOK)
	kv := newTestStore(t)
	c := NewCatalog(srv.URL, &http.Client{}, kv)
	bus := NewBus()
	return NewSelector(kv, c, bus, seed), bus
}

func TestGetOrSelectPicksFromFreePool(t *testing.T) {
	s, _ := newTestSelector(t, catalogJSON, 1)
	ctx := context.Background()

	server, ok := s.GetOrSelect(ctx, false)
	if !ok {
		t.Fatal("expected a selection")
	}
	if server.Name != "us-east-1" && server.Name != "us-west-1" {
		t.Fatalf("free selection picked premium server %q", server.Name)
	}
}

func TestGetOrSelectPersistedWins(t *testing.T) {
	s, _ := newTestSelector(t, catalogJSON, 1)
	ctx := context.Background()

	first, ok := s.GetOrSelect(ctx, false)
	if !ok {
		t.Fatal("expected a selection")
	}
	for i := 0; i < 10; i++ {
		again, ok := s.GetOrSelect(ctx, false)
		if !ok || again.Name != first.Name {
			t.Fatalf("selection changed: %q vs %q", again.Name, first.Name)
		}
	}
}

func TestGetOrSelectPersistedSurvivesEntitlementChange(t *testing.T) {
	s, _ := newTestSelector(t, catalogJSON, 1)
	ctx := context.Background()

	premium, ok := s.GetOrSelect(ctx, true)
	if !ok || premium.Name != "ch-zrh-1" {
		t.Fatalf("expected premium selection, got %q ok=%t", premium.Name, ok)
	}
	// Entitlement lapses; the persisted premium selection stays.
	after, ok := s.GetOrSelect(ctx, false)
	if !ok || after.Name != "ch-zrh-1" {
		t.Fatalf("persisted selection not honored: %q ok=%t", after.Name, ok)
	}
}

func TestGetOrSelectEmptyPoolReturnsNone(t *testing.T) {
	onlyPremium := `{"servers": {"ch": {"name": "Switzerland", "requiresSubscription": true,
		"servers": {"ch-zrh-1": {"publicIP": "203.0.113.20", "country": "ch"}}}}}`
	s, _ := newTestSelector(t, onlyPremium, 1)

	if _, ok := s.GetOrSelect(context.Background(), false); ok {
		t.Fatal("expected no selection from empty free pool")
	}
}

func TestGetOrSelectSeededIsDeterministic(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestSelector(t, catalogJSON, 7)
	b, _ := newTestSelector(t, catalogJSON, 7)

	sa, okA := a.GetOrSelect(ctx, false)
	sb, okB := b.GetOrSelect(ctx, false)
	if !okA || !okB || sa.Name != sb.Name {
		t.Fatalf("seeded selections diverged: %q vs %q", sa.Name, sb.Name)
	}
}

func TestSelectPersistsAndNotifies(t *testing.T) {
	s, bus := newTestSelector(t, catalogJSON, 1)
	ctx := context.Background()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	want := proto.Server{
		Name:                 "us-west-1",
		Nickname:             "Portland",
		Country:              "us",
		State:                "OR",
		City:                 "Portland",
		PublicIP:             "203.0.113.11",
		RequiresSubscription: false,
		Capacity:             100,
		CurrentCapacity:      37,
		LastUpdated:          "2026-08-30T12:00:00Z",
		Port:                 5100,
	}
	if err := s.Select(ctx, want); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if ev := <-ch; ev != EventServerChanged {
		t.Fatalf("got event %s", ev)
	}
	got, ok := s.Current(ctx)
	if !ok || got != want {
		t.Fatalf("persisted selection round-trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestCurrentIsReadOnly(t *testing.T) {
	s, _ := newTestSelector(t, catalogJSON, 1)
	if _, ok := s.Current(context.Background()); ok {
		t.Fatal("expected no current selection before any pick")
	}
}
