package tunnel

import "context"

// Status mirrors what the OS tunnel subsystem reports for a handle.
// The session manager treats this as advisory; ground truth comes from
// the external connectivity probe.
type Status string

const (
	StatusInvalid       Status = "invalid"
	StatusDisconnected  Status = "disconnected"
	StatusConnecting    Status = "connecting"
	StatusConnected     Status = "connected"
	StatusDisconnecting Status = "disconnecting"
)

// Handle is one OS tunnel object. At most one exists per device;
// callers obtain it through a Provider and never construct duplicates.
type Handle interface {
	// SetConfig attaches a wg-quick configuration and persists the
	// handle as enabled.
	SetConfig(ctx context.Context, config string) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
}

// Provider locates or creates the device's tunnel handle.
type Provider interface {
	// Existing returns the first previously created handle, if any.
	Existing(ctx context.Context) (Handle, bool, error)
	Create(ctx context.Context) (Handle, error)
}
