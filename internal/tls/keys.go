package tls

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/pem"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// ImportPublicKeyJWK parses a single JSON Web Key. A private JWK is reduced
// to its public half. It returns nil when the input is not an RSA, EC or
// OKP (Ed25519) key.
func ImportPublicKeyJWK(data []byte) *PublicKey {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil
	}

	pub, err := jwk.PublicKeyOf(key)
	if err != nil {
		return nil
	}

	var raw interface{}
	if err := pub.Raw(&raw); err != nil {
		return nil
	}

	switch k := raw.(type) {
	case *rsa.PublicKey:
		if k.N == nil || k.N.Sign() <= 0 || k.E <= 0 {
			return nil
		}
		return NewPublicKey(k)
	case *ecdsa.PublicKey, ed25519.PublicKey:
		return NewPublicKey(k)
	default:
		return nil
	}
}

// ImportPublicKeyPEM parses the first PUBLIC KEY block of a PEM document.
// It returns nil when there is none or it does not hold a supported key.
func ImportPublicKeyPEM(data []byte) *PublicKey {
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil
		}
		if block.Type == "PUBLIC KEY" {
			return ImportPublicKey(block.Bytes)
		}
	}
	return nil
}
