package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"

	"skylink/pkg/proto"
	"skylink/pkg/store"
)

// ErrFetch marks a failed catalog refresh. The previous cached payload
// stays usable; callers treat this as a degraded mode, not a failure
// worth surfacing.
var ErrFetch = errors.New("catalog fetch failed")

// Catalog fetches and caches the raw server directory and parses it
// into the free/premium partitions on demand.
type Catalog struct {
	url        string
	httpClient *http.Client
	kv         *store.Store
}

func NewCatalog(url string, httpClient *http.Client, kv *store.Store) *Catalog {
	return &Catalog{url: url, httpClient: httpClient, kv: kv}
}

// Refresh fetches the directory once and atomically replaces the cached
// raw payload. It does not parse; failures leave the prior cache alone.
func (c *Catalog) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("catalog request: %w", ErrFetch)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog fetch: %v: %w", err, ErrFetch)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog status %d: %w", resp.StatusCode, ErrFetch)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("catalog read: %v: %w", err, ErrFetch)
	}
	if err := c.kv.Put(ctx, keyCachedCatalog, raw); err != nil {
		return err
	}
	log.Printf("catalog refreshed bytes=%d", len(raw))
	return nil
}

// LoadPartitions parses the cached payload into the free and premium
// pools. A server's tier comes from its parent country grouping. Parse
// failures and a cold cache both yield two empty slices; callers treat
// that as "no data yet".
func (c *Catalog) LoadPartitions(ctx context.Context) (free []proto.Server, premium []proto.Server) {
	db, ok := c.decode(ctx)
	if !ok {
		return nil, nil
	}
	for _, country := range db.Servers {
		for name, server := range country.Servers {
			if server.Name == "" {
				server.Name = name
			}
			if country.RequiresSubscription {
				premium = append(premium, server)
			} else {
				free = append(free, server)
			}
		}
	}
	return free, premium
}

// Countries returns the grouped country view for selection surfaces,
// sorted by display name.
func (c *Catalog) Countries(ctx context.Context) []proto.Country {
	db, ok := c.decode(ctx)
	if !ok {
		return nil
	}
	out := make([]proto.Country, 0, len(db.Servers))
	for key, country := range db.Servers {
		if country.Name == "" {
			country.Name = key
		}
		out = append(out, country)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DisplayName() < out[j].DisplayName()
	})
	return out
}

func (c *Catalog) decode(ctx context.Context) (proto.ServerDatabase, bool) {
	raw, ok, err := c.kv.Get(ctx, keyCachedCatalog)
	if err != nil {
		log.Printf("catalog cache read failed: %v", err)
		return proto.ServerDatabase{}, false
	}
	if !ok {
		return proto.ServerDatabase{}, false
	}
	var db proto.ServerDatabase
	if err := json.Unmarshal(raw, &db); err != nil {
		log.Printf("catalog parse failed: %v", err)
		return proto.ServerDatabase{}, false
	}
	return db, true
}
