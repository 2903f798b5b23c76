package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"skylink/pkg/proto"
	"skylink/pkg/store"
)

// Subscription answers "is this account entitled to premium servers".
// Reads are cache-first so selection never blocks on the network;
// RefreshEntitlement updates the cache from the registry.
type Subscription struct {
	registryURL string
	httpClient  *http.Client
	kv          *store.Store
}

func NewSubscription(registryURL string, httpClient *http.Client, kv *store.Store) *Subscription {
	return &Subscription{registryURL: registryURL, httpClient: httpClient, kv: kv}
}

// Subscribed returns the locally cached entitlement, defaulting to
// false when nothing has been cached yet.
func (s *Subscription) Subscribed(ctx context.Context) bool {
	v, err := s.kv.GetBool(ctx, keySubscribed)
	if err != nil {
		log.Printf("subscription cache read failed: %v", err)
		return false
	}
	return v
}

// RefreshEntitlement fetches the current entitlement and caches it.
func (s *Subscription) RefreshEntitlement(ctx context.Context) (bool, error) {
	accountID, ok, err := s.kv.GetString(ctx, keyAccountID)
	if err != nil {
		return false, err
	}
	if !ok || accountID == "" {
		return false, fmt.Errorf("no account to check entitlement for")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(s.registryURL, "/v1/subscriptions/"+accountID), nil)
	if err != nil {
		return false, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("entitlement fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		// No subscription document yet.
		if err := s.kv.PutBool(ctx, keySubscribed, false); err != nil {
			return false, err
		}
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("entitlement status %d", resp.StatusCode)
	}
	var out proto.EntitlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("entitlement decode: %w", err)
	}
	if err := s.kv.PutBool(ctx, keySubscribed, out.IsActive); err != nil {
		return false, err
	}
	log.Printf("entitlement refreshed account=%s active=%t", accountID, out.IsActive)
	return out.IsActive, nil
}
