package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"skylink/pkg/proto"
	"skylink/pkg/tunnel"
	"skylink/pkg/wg"
)

var (
	// ErrNoServerAvailable: no relay could be chosen for this session.
	ErrNoServerAvailable = errors.New("no server available")
	// ErrMissingIdentity: the device identity has not been provisioned.
	ErrMissingIdentity = errors.New("device identity not provisioned")
	// ErrAssignmentFailed: the control plane did not hand out an address.
	ErrAssignmentFailed = errors.New("address assignment failed")
	// ErrTunnelStartFailed: the OS tunnel rejected configuration or start.
	ErrTunnelStartFailed = errors.New("tunnel start failed")
)

const (
	defaultServerPort = 5000
	tunnelDNS         = "1.1.1.1"
	tunnelAllowedIPs  = "0.0.0.0/0"
	tunnelKeepalive   = 25
)

// AddressProbe reports the device's current external address. The
// session compares it against the selected relay's address to decide
// whether traffic actually flows through the tunnel.
type AddressProbe interface {
	PublicIP(ctx context.Context) (string, error)
}

type echoProbe struct {
	url        string
	httpClient *http.Client
}

// NewEchoProbe probes via an external IP-echo endpoint. Its client has
// a short timeout of its own so a slow probe cannot stall the
// reconciler loop.
func NewEchoProbe(url string) AddressProbe {
	return &echoProbe{
		url:        url,
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

func (p *echoProbe) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ip echo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip echo status %d", resp.StatusCode)
	}
	var out proto.IPEchoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ip echo decode: %w", err)
	}
	return out.IP, nil
}

// Session drives the tunnel lifecycle: connect, disconnect, and the
// connectivity check the reconciler polls. One transition runs at a
// time; a second Connect or Disconnect while busy is a silent no-op.
type Session struct {
	selector *Selector
	identity *IdentityManager
	subs     *Subscription
	control  *ControlPlane
	tunnels  tunnel.Provider
	probe    AddressProbe
	bus      *Bus

	mu    sync.Mutex
	busy  bool
	state proto.ConnState
}

func NewSession(selector *Selector, identity *IdentityManager, subs *Subscription, control *ControlPlane, tunnels tunnel.Provider, probe AddressProbe, bus *Bus) *Session {
	return &Session{
		selector: selector,
		identity: identity,
		subs:     subs,
		control:  control,
		tunnels:  tunnels,
		probe:    probe,
		bus:      bus,
		state:    proto.StateDisconnected,
	}
}

// State returns the session's current transitional view. Settled
// connected/disconnected facts come from the reconciler.
func (s *Session) State() proto.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) begin(state proto.ConnState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.state = state
	return true
}

func (s *Session) end(state proto.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.state = state
}

// settle records a state observed by the reconciler without firing
// events; the reconciler owns event dedup.
func (s *Session) settle(state proto.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return
	}
	s.state = state
}

// Connect runs the full bring-up: pick server, load identity, request
// an address, render the tunnel config, start the tunnel. Any step
// failing returns the session to disconnected; nothing is retried.
func (s *Session) Connect(ctx context.Context) error {
	if !s.begin(proto.StateConnecting) {
		return nil
	}
	s.bus.Publish(EventConnecting)

	err := s.connect(ctx)
	if err != nil {
		log.Printf("connect failed: %v", err)
		s.end(proto.StateDisconnected)
		s.bus.Publish(EventDisconnected)
		return err
	}
	// Stay in connecting; the reconciler flips to connected once the
	// external probe confirms traffic egresses via the relay.
	s.end(proto.StateConnecting)
	return nil
}

func (s *Session) connect(ctx context.Context) error {
	subscribed := s.subs.Subscribed(ctx)
	server, ok := s.selector.GetOrSelect(ctx, subscribed)
	if !ok || server.PublicIP == "" {
		return ErrNoServerAvailable
	}

	id, ok, err := s.identity.Identity(ctx)
	if err != nil {
		return fmt.Errorf("load identity: %v: %w", err, ErrMissingIdentity)
	}
	if !ok {
		return ErrMissingIdentity
	}

	port := server.Port
	if port == 0 {
		port = defaultServerPort
	}
	assignment, err := s.control.RequestAssignment(ctx, server.PublicIP, port, id.PublicKey)
	if err != nil {
		return fmt.Errorf("request assignment: %w: %w", ErrAssignmentFailed, err)
	}

	config := wg.QuickConfig{
		PrivateKey:    id.PrivateKey,
		Address:       assignment.ClientIP + "/32",
		DNS:           tunnelDNS,
		PeerPublicKey: assignment.ServerPublicKey,
		Endpoint:      net.JoinHostPort(server.PublicIP, strconv.Itoa(assignment.Port)),
		AllowedIPs:    tunnelAllowedIPs,
		KeepaliveSec:  tunnelKeepalive,
	}.Render()

	handle, ok, err := s.tunnels.Existing(ctx)
	if err != nil {
		return fmt.Errorf("locate tunnel: %v: %w", err, ErrTunnelStartFailed)
	}
	if !ok {
		handle, err = s.tunnels.Create(ctx)
		if err != nil {
			return fmt.Errorf("create tunnel: %v: %w", err, ErrTunnelStartFailed)
		}
	}
	if err := handle.SetConfig(ctx, config); err != nil {
		return fmt.Errorf("set tunnel config: %v: %w", err, ErrTunnelStartFailed)
	}
	if err := handle.Start(ctx); err != nil {
		return fmt.Errorf("start tunnel: %v: %w", err, ErrTunnelStartFailed)
	}
	log.Printf("tunnel started server=%s endpoint=%s", server.Name, net.JoinHostPort(server.PublicIP, strconv.Itoa(assignment.Port)))
	return nil
}

// Disconnect stops the tunnel if one is actually running. With no
// handle, or a handle that is already down, it settles the session as
// disconnected and succeeds.
func (s *Session) Disconnect(ctx context.Context) error {
	if !s.begin(proto.StateDisconnecting) {
		return nil
	}
	s.bus.Publish(EventDisconnecting)

	handle, ok, err := s.tunnels.Existing(ctx)
	if err != nil {
		s.end(proto.StateDisconnected)
		return fmt.Errorf("locate tunnel: %w", err)
	}
	if !ok {
		s.end(proto.StateDisconnected)
		return nil
	}

	status, err := handle.Status(ctx)
	if err != nil {
		s.end(proto.StateDisconnected)
		return fmt.Errorf("tunnel status: %w", err)
	}
	if status != tunnel.StatusConnected && status != tunnel.StatusConnecting {
		s.end(proto.StateDisconnected)
		return nil
	}
	if err := handle.Stop(ctx); err != nil {
		s.end(proto.StateDisconnected)
		return fmt.Errorf("stop tunnel: %w", err)
	}
	log.Printf("tunnel stopped")
	s.end(proto.StateDisconnected)
	return nil
}

// IsConnected is the external ground truth check: the device's public
// address equals the selected relay's address. Any failure along the
// way reads as not connected; the check makes exactly one network call.
func (s *Session) IsConnected(ctx context.Context) bool {
	server, ok := s.selector.Current(ctx)
	if !ok || server.PublicIP == "" {
		return false
	}
	ip, err := s.probe.PublicIP(ctx)
	if err != nil {
		return false
	}
	return ip == server.PublicIP
}
