package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"skylink/pkg/proto"
	"skylink/pkg/store"
	"skylink/pkg/tunnel"
)

// Storage keys. These are the on-disk contract; renaming one orphans
// the value it points at.
const (
	keyAccountID     = "accountID"
	keyInstallID     = "uniqueInstallID"
	keyPrivateKey    = "privateKey"
	keyPublicKey     = "publicKey"
	keyCachedCatalog = "cachedServerJSON"
	keyCurrentServer = "currentServer"
	keyLastConnState = "lastConnectionState"
	keySubscribed    = "isSubscribed"
)

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// Config holds everything the app reads from its environment.
type Config struct {
	CatalogURL      string
	ControlPlaneURL string
	RegistryURL     string
	IPEchoURL       string
	StateDB         string
	TunnelBackend   string
	TunnelIface     string
	Interval        time.Duration
	SelectionSeed   int64
	HTTPTimeout     time.Duration
}

// ConfigFromEnv reads SKYLINK_* variables, applying defaults where a
// reasonable one exists. The catalog, control plane and registry URLs
// have no defaults; they name deployments.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		CatalogURL:      os.Getenv("SKYLINK_CATALOG_URL"),
		ControlPlaneURL: os.Getenv("SKYLINK_CONTROL_PLANE_URL"),
		RegistryURL:     os.Getenv("SKYLINK_REGISTRY_URL"),
		IPEchoURL:       envOr("SKYLINK_IPECHO_URL", "https://api.ipify.org?format=json"),
		StateDB:         envOr("SKYLINK_STATE_DB", filepath.Join("data", "skylink.db")),
		TunnelBackend:   envOr("SKYLINK_TUNNEL_BACKEND", "noop"),
		TunnelIface:     envOr("SKYLINK_TUNNEL_IFACE", "skylink0"),
		Interval:        time.Second,
		HTTPTimeout:     5 * time.Second,
	}
	if cfg.CatalogURL == "" {
		return Config{}, fmt.Errorf("SKYLINK_CATALOG_URL is required")
	}
	if cfg.ControlPlaneURL == "" {
		return Config{}, fmt.Errorf("SKYLINK_CONTROL_PLANE_URL is required")
	}
	if cfg.RegistryURL == "" {
		return Config{}, fmt.Errorf("SKYLINK_REGISTRY_URL is required")
	}
	if v := os.Getenv("SKYLINK_RECONCILE_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return Config{}, fmt.Errorf("invalid SKYLINK_RECONCILE_INTERVAL_MS %q", v)
		}
		cfg.Interval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("SKYLINK_SELECTION_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SKYLINK_SELECTION_SEED %q", v)
		}
		cfg.SelectionSeed = seed
	}
	if v := os.Getenv("SKYLINK_HTTP_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return Config{}, fmt.Errorf("invalid SKYLINK_HTTP_TIMEOUT_SEC %q", v)
		}
		cfg.HTTPTimeout = time.Duration(sec) * time.Second
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// App is the composition root wiring storage, the HTTP clients and the
// session components together.
type App struct {
	cfg Config
	kv  *store.Store

	Bus          *Bus
	Identity     *IdentityManager
	Catalog      *Catalog
	Subscription *Subscription
	Selector     *Selector
	Session      *Session
	Reconciler   *Reconciler
}

func New(cfg Config) (*App, error) {
	kv, err := store.Open(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	bus := NewBus()

	var tunnels tunnel.Provider
	switch cfg.TunnelBackend {
	case "noop":
		tunnels = tunnel.NewNoopProvider()
	case "command":
		tunnels = tunnel.NewCommandProvider(filepath.Join(filepath.Dir(cfg.StateDB), "wg"), cfg.TunnelIface)
	default:
		kv.Close()
		return nil, fmt.Errorf("unknown tunnel backend %q", cfg.TunnelBackend)
	}

	identity := NewIdentityManager(cfg.RegistryURL, httpClient, kv)
	catalog := NewCatalog(cfg.CatalogURL, httpClient, kv)
	subs := NewSubscription(cfg.RegistryURL, httpClient, kv)
	selector := NewSelector(kv, catalog, bus, cfg.SelectionSeed)
	control := NewControlPlane(cfg.ControlPlaneURL, httpClient)
	probe := NewEchoProbe(cfg.IPEchoURL)
	session := NewSession(selector, identity, subs, control, tunnels, probe, bus)

	return &App{
		cfg:          cfg,
		kv:           kv,
		Bus:          bus,
		Identity:     identity,
		Catalog:      catalog,
		Subscription: subs,
		Selector:     selector,
		Session:      session,
		Reconciler:   NewReconciler(session, kv, bus, cfg.Interval),
	}, nil
}

func (a *App) Close() error {
	return a.kv.Close()
}

// Startup provisions the identity and warms the catalog and entitlement
// caches. Catalog and entitlement failures are logged, not fatal; the
// cached copies keep the app usable offline.
func (a *App) Startup(ctx context.Context) error {
	if _, err := a.Identity.EnsureIdentity(ctx); err != nil {
		return err
	}
	if err := a.Catalog.Refresh(ctx); err != nil {
		log.Printf("startup catalog refresh failed: %v", err)
	}
	if _, err := a.Subscription.RefreshEntitlement(ctx); err != nil {
		log.Printf("startup entitlement refresh failed: %v", err)
	}
	return nil
}

// Watch runs Startup then the reconciler loop until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	if err := a.Startup(ctx); err != nil {
		return err
	}
	return a.Reconciler.Run(ctx)
}

// Status summarizes the session for the CLI, including one live
// connectivity probe.
func (a *App) Status(ctx context.Context) string {
	state := a.Session.State()
	connected := a.Session.IsConnected(ctx)
	server, ok := a.Selector.Current(ctx)
	if !ok {
		return fmt.Sprintf("state=%s connected=%t server=none", state, connected)
	}
	return fmt.Sprintf("state=%s connected=%t server=%s country=%s ip=%s", state, connected, server.Name, server.Country, server.PublicIP)
}

// State exposes the session state for callers that do not want the
// formatted summary.
func (a *App) State() proto.ConnState {
	return a.Session.State()
}
