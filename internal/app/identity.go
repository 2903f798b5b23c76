package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"

	"skylink/pkg/proto"
	"skylink/pkg/store"
	"skylink/pkg/wg"
)

// ErrProvisioning covers any failure to establish the device identity.
// Retried on the next app foreground; never leaves partial local state.
var ErrProvisioning = errors.New("identity provisioning failed")

type identityDeps struct {
	generateKeypair func() (wg.Keypair, error)
	newInstallID    func() string
}

func defaultIdentityDeps() identityDeps {
	return identityDeps{
		generateKeypair: wg.GenerateKeypair,
		newInstallID:    uuid.NewString,
	}
}

// IdentityManager owns the durable per-install identity: anonymous
// account, install ID and the device keypair. Generate-once; every
// other component reads the identity through it.
type IdentityManager struct {
	registryURL string
	httpClient  *http.Client
	kv          *store.Store
	deps        identityDeps
}

func NewIdentityManager(registryURL string, httpClient *http.Client, kv *store.Store) *IdentityManager {
	return &IdentityManager{
		registryURL: registryURL,
		httpClient:  httpClient,
		kv:          kv,
		deps:        defaultIdentityDeps(),
	}
}

// Identity returns the provisioned identity without side effects.
// ok is false until EnsureIdentity has completed at least once.
func (m *IdentityManager) Identity(ctx context.Context) (proto.Identity, bool, error) {
	var id proto.Identity
	for _, field := range []struct {
		key string
		dst *string
	}{
		{keyAccountID, &id.AccountID},
		{keyInstallID, &id.InstallID},
		{keyPrivateKey, &id.PrivateKey},
		{keyPublicKey, &id.PublicKey},
	} {
		v, ok, err := m.kv.GetString(ctx, field.key)
		if err != nil {
			return proto.Identity{}, false, err
		}
		if !ok || v == "" {
			return proto.Identity{}, false, nil
		}
		*field.dst = v
	}
	return id, true, nil
}

// EnsureIdentity makes the identity exist: account first, then keypair
// plus install ID. Idempotent; a second call with intact storage makes
// no remote registration. Local persistence and remote registration are
// one logical unit, so a registry failure discards the generated keys.
func (m *IdentityManager) EnsureIdentity(ctx context.Context) (proto.Identity, error) {
	accountID, err := m.ensureAccount(ctx)
	if err != nil {
		return proto.Identity{}, err
	}

	if id, ok, err := m.Identity(ctx); err != nil {
		return proto.Identity{}, err
	} else if ok {
		return id, nil
	}

	keys, err := m.deps.generateKeypair()
	if err != nil {
		return proto.Identity{}, fmt.Errorf("generate keypair: %w", ErrProvisioning)
	}
	installID := m.deps.newInstallID()

	if err := m.registerInstall(ctx, proto.RegisterInstallRequest{
		AccountID: accountID,
		InstallID: installID,
		PublicKey: keys.Public,
	}); err != nil {
		// Registration failed: keep nothing local, so a retry
		// regenerates cleanly.
		return proto.Identity{}, err
	}

	id := proto.Identity{
		AccountID:  accountID,
		InstallID:  installID,
		PrivateKey: keys.Private,
		PublicKey:  keys.Public,
	}
	if err := m.kv.PutAll(ctx, map[string][]byte{
		keyAccountID:  []byte(id.AccountID),
		keyInstallID:  []byte(id.InstallID),
		keyPrivateKey: []byte(id.PrivateKey),
		keyPublicKey:  []byte(id.PublicKey),
	}); err != nil {
		return proto.Identity{}, fmt.Errorf("persist identity: %w", err)
	}
	log.Printf("identity provisioned account=%s install=%s", id.AccountID, id.InstallID)
	return id, nil
}

func (m *IdentityManager) ensureAccount(ctx context.Context) (string, error) {
	if accountID, ok, err := m.kv.GetString(ctx, keyAccountID); err != nil {
		return "", err
	} else if ok && accountID != "" {
		return accountID, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(m.registryURL, "/v1/accounts/anonymous"), nil)
	if err != nil {
		return "", fmt.Errorf("create account request: %w", ErrProvisioning)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create account: %v: %w", err, ErrProvisioning)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create account status %d: %w", resp.StatusCode, ErrProvisioning)
	}
	var out proto.AnonymousAccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode account response: %w", ErrProvisioning)
	}
	if out.AccountID == "" {
		return "", fmt.Errorf("account response missing accountID: %w", ErrProvisioning)
	}
	if err := m.kv.PutString(ctx, keyAccountID, out.AccountID); err != nil {
		return "", err
	}
	log.Printf("anonymous account created account=%s", out.AccountID)
	return out.AccountID, nil
}

func (m *IdentityManager) registerInstall(ctx context.Context, in proto.RegisterInstallRequest) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode install registration: %w", ErrProvisioning)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(m.registryURL, "/v1/installs"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("install registration request: %w", ErrProvisioning)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("register install: %v: %w", err, ErrProvisioning)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("register install status %d: %w", resp.StatusCode, ErrProvisioning)
	}
	return nil
}
