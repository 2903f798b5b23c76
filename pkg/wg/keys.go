package wg

import (
	"encoding/base64"
	"errors"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

var ErrInvalidKey = errors.New("invalid wireguard key")

// Keypair holds a Curve25519 key pair in base64 string form, the way it
// travels over the wire and into the rendered tunnel config.
type Keypair struct {
	Private string
	Public  string
}

// GenerateKeypair creates a fresh key-agreement keypair for the device.
func GenerateKeypair() (Keypair, error) {
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{
		Private: priv.String(),
		Public:  priv.PublicKey().String(),
	}, nil
}

func DecodeKeyBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, ErrInvalidKey
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, ErrInvalidKey
}

func IsValidPublicKey(s string) bool {
	_, err := DecodeKeyBase64(s)
	return err == nil
}
