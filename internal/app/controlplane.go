package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"skylink/pkg/proto"
)

var (
	// ErrMalformedResponse: the control plane answered but violated
	// the contract. Not retryable without a server-side fix.
	ErrMalformedResponse = errors.New("malformed control plane response")
	// ErrRemoteRejection: the control plane refused the request.
	ErrRemoteRejection = errors.New("control plane rejected request")
)

// ControlPlane performs the single RPC that turns "relay X plus my
// public key" into an assigned client IP, the relay's tunnel public key
// and a port. No retries here; that decision belongs to callers.
type ControlPlane struct {
	url        string
	httpClient *http.Client
}

func NewControlPlane(url string, httpClient *http.Client) *ControlPlane {
	return &ControlPlane{url: url, httpClient: httpClient}
}

// assignmentWire uses pointers so absent fields are distinguishable
// from zero values; a partial response is never accepted.
type assignmentWire struct {
	IP              *string `json:"ip"`
	ServerPublicKey *string `json:"serverPublicKey"`
	Port            *int    `json:"port"`
}

func (c *ControlPlane) RequestAssignment(ctx context.Context, serverIP string, serverPort int, publicKey string) (proto.Assignment, error) {
	var out proto.Assignment
	payload, err := json.Marshal(proto.AssignmentRequest{
		ServerIP:   serverIP,
		ServerPort: serverPort,
		PublicKey:  publicKey,
	})
	if err != nil {
		return out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.url, "/v1/requestIPAddress"), bytes.NewReader(payload))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("control plane request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("control plane status %d: %w", resp.StatusCode, ErrRemoteRejection)
	}

	var wire assignmentWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return out, fmt.Errorf("decode assignment: %w", ErrMalformedResponse)
	}
	if wire.IP == nil || wire.ServerPublicKey == nil || wire.Port == nil {
		return out, fmt.Errorf("assignment missing fields: %w", ErrMalformedResponse)
	}
	out = proto.Assignment{
		ClientIP:        *wire.IP,
		ServerPublicKey: *wire.ServerPublicKey,
		Port:            *wire.Port,
	}
	return out, nil
}
