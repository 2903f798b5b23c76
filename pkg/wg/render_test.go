package wg

import "testing"

func TestRenderQuickConfig(t *testing.T) {
	conf := QuickConfig{
		PrivateKey:    "cHJpdmF0ZWtleXByaXZhdGVrZXlwcml2YXRla2V5cHI=",
		Address:       "10.0.0.5/32",
		DNS:           "1.1.1.1",
		PeerPublicKey: "c2VydmVycHVia2V5c2VydmVycHVia2V5c2VydmVycA==",
		Endpoint:      "203.0.113.10:51820",
		AllowedIPs:    "0.0.0.0/0",
		KeepaliveSec:  25,
	}

	want := `[Interface]
PrivateKey = cHJpdmF0ZWtleXByaXZhdGVrZXlwcml2YXRla2V5cHI=
Address = 10.0.0.5/32
DNS = 1.1.1.1

[Peer]
PublicKey = c2VydmVycHVia2V5c2VydmVycHVia2V5c2VydmVycA==
Endpoint = 203.0.113.10:51820
AllowedIPs = 0.0.0.0/0
PersistentKeepalive = 25`

	if got := conf.Render(); got != want {
		t.Fatalf("rendered config mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
