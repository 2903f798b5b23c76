package proto

// ConnState is the canonical connection state of the tunnel session.
// It is mutated only by the session manager and the reconciler.
type ConnState string

const (
	StateDisconnected  ConnState = "disconnected"
	StateConnecting    ConnState = "connecting"
	StateConnected     ConnState = "connected"
	StateDisconnecting ConnState = "disconnecting"
)

// Server is one relay entry from the catalog. Records are immutable for
// the lifetime of a catalog snapshot; Name is the primary key.
type Server struct {
	Name                 string `json:"name"`
	Nickname             string `json:"nickname,omitempty"`
	Country              string `json:"country,omitempty"`
	State                string `json:"state,omitempty"`
	City                 string `json:"city,omitempty"`
	PublicIP             string `json:"publicIP,omitempty"`
	RequiresSubscription bool   `json:"requiresSubscription"`
	Capacity             int    `json:"capacity"`
	CurrentCapacity      int    `json:"currentCapacity"`
	LastUpdated          string `json:"lastUpdated"`
	Port                 int    `json:"port,omitempty"`
}

// Country groups servers by country name. The subscription tier is a
// property of the country grouping, not of the individual server record.
type Country struct {
	Name                 string            `json:"name,omitempty"`
	RequiresSubscription bool              `json:"requiresSubscription"`
	Servers              map[string]Server `json:"servers"`
}

// DisplayName returns the country name, falling back to "Unknown" for
// catalog entries that carry none.
func (c Country) DisplayName() string {
	if c.Name == "" {
		return "Unknown"
	}
	return c.Name
}

// ServerDatabase is the raw catalog payload: a single top-level key
// mapping country names to their grouped server records.
type ServerDatabase struct {
	Servers map[string]Country `json:"servers"`
}

// Identity is the durable per-install identity. Created once, then
// read-only to everything except the identity manager.
type Identity struct {
	AccountID  string `json:"accountID"`
	InstallID  string `json:"installID"`
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
}

// Assignment is the tunnel parameter triple returned by the control
// plane for one connection attempt. Never persisted.
type Assignment struct {
	ClientIP        string `json:"ip"`
	ServerPublicKey string `json:"serverPublicKey"`
	Port            int    `json:"port"`
}

// AssignmentRequest is the control-plane RPC input.
type AssignmentRequest struct {
	ServerIP   string `json:"serverIP"`
	ServerPort int    `json:"serverPort"`
	PublicKey  string `json:"publicKey"`
}

// RegisterInstallRequest registers a freshly generated device public key
// with the identity registry.
type RegisterInstallRequest struct {
	AccountID string `json:"accountID"`
	InstallID string `json:"installID"`
	PublicKey string `json:"publicKey"`
}

// AnonymousAccountResponse is returned when creating an anonymous account.
type AnonymousAccountResponse struct {
	AccountID string `json:"accountID"`
}

// EntitlementResponse reports whether a subscription is active.
type EntitlementResponse struct {
	IsActive bool `json:"isActive"`
}

// IPEchoResponse is the body of the public IP-echo probe endpoint.
type IPEchoResponse struct {
	IP string `json:"ip"`
}
