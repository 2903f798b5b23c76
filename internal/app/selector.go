package app

import (
	"context"
	"encoding/json"
	"log"
	mrand "math/rand"
	"time"

	"skylink/pkg/proto"
	"skylink/pkg/store"
)

// Selector chooses the relay for the current session and persists the
// choice across launches. A persisted selection always wins and is
// never re-validated against entitlement: a lapsed subscriber keeps
// their premium server until they pick another one themselves.
type Selector struct {
	kv      *store.Store
	catalog *Catalog
	bus     *Bus
	rng     *mrand.Rand
}

// NewSelector builds a selector. seed != 0 pins the random source for
// reproducible selection.
func NewSelector(kv *store.Store, catalog *Catalog, bus *Bus, seed int64) *Selector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{
		kv:      kv,
		catalog: catalog,
		bus:     bus,
		rng:     mrand.New(mrand.NewSource(seed)),
	}
}

// Current returns the persisted selection without choosing one.
func (s *Selector) Current(ctx context.Context) (proto.Server, bool) {
	raw, ok, err := s.kv.Get(ctx, keyCurrentServer)
	if err != nil {
		log.Printf("selector read failed: %v", err)
		return proto.Server{}, false
	}
	if !ok {
		return proto.Server{}, false
	}
	var server proto.Server
	if err := json.Unmarshal(raw, &server); err != nil {
		log.Printf("selector decode failed: %v", err)
		return proto.Server{}, false
	}
	return server, true
}

// GetOrSelect returns the persisted selection, or picks one uniformly
// at random from the entitlement-matching partition, persisting it
// immediately. ok is false only when that partition is still empty
// after one refresh attempt.
func (s *Selector) GetOrSelect(ctx context.Context, subscribed bool) (proto.Server, bool) {
	if server, ok := s.Current(ctx); ok {
		return server, true
	}

	pool := s.pool(ctx, subscribed)
	if len(pool) == 0 {
		if err := s.catalog.Refresh(ctx); err != nil {
			log.Printf("selector catalog refresh failed: %v", err)
		}
		pool = s.pool(ctx, subscribed)
	}
	if len(pool) == 0 {
		log.Printf("selector found no servers subscribed=%t", subscribed)
		return proto.Server{}, false
	}

	server := pool[s.rng.Intn(len(pool))]
	if err := s.persist(ctx, server); err != nil {
		log.Printf("selector persist failed: %v", err)
		return proto.Server{}, false
	}
	log.Printf("selector picked server=%s country=%s subscribed=%t", server.Name, server.Country, subscribed)
	return server, true
}

// Select is the user-driven override: persist unconditionally and tell
// dependent views to refresh.
func (s *Selector) Select(ctx context.Context, server proto.Server) error {
	if err := s.persist(ctx, server); err != nil {
		return err
	}
	log.Printf("selector set server=%s", server.Name)
	s.bus.Publish(EventServerChanged)
	return nil
}

func (s *Selector) pool(ctx context.Context, subscribed bool) []proto.Server {
	free, premium := s.catalog.LoadPartitions(ctx)
	if subscribed {
		return premium
	}
	return free
}

func (s *Selector) persist(ctx context.Context, server proto.Server) error {
	raw, err := json.Marshal(server)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, keyCurrentServer, raw)
}
