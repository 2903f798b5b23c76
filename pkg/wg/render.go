package wg

import "fmt"

// QuickConfig is the data rendered into a wg-quick configuration block.
// The rendered text is the contract with the OS tunnel adapter: key
// names and section order must not change.
type QuickConfig struct {
	PrivateKey    string
	Address       string
	DNS           string
	PeerPublicKey string
	Endpoint      string
	AllowedIPs    string
	KeepaliveSec  int
}

// Render produces the [Interface]/[Peer] config text verbatim.
func (c QuickConfig) Render() string {
	return fmt.Sprintf(`[Interface]
PrivateKey = %s
Address = %s
DNS = %s

[Peer]
PublicKey = %s
Endpoint = %s
AllowedIPs = %s
PersistentKeepalive = %d`,
		c.PrivateKey,
		c.Address,
		c.DNS,
		c.PeerPublicKey,
		c.Endpoint,
		c.AllowedIPs,
		c.KeepaliveSec,
	)
}
