package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"

	"github.com/google/uuid"
	jwk "github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/quipper/poc/sis/be/pkg/common/logger"
)

// Source describes where the session signing key comes from.
// PEM wins over B64; when both are empty an ephemeral key is generated.
type Source struct {
	Kid string
	PEM string
	B64 string
}

// Set holds the RSA key used to sign session tokens and its public JWKS.
type Set struct {
	kid  string
	key  *rsa.PrivateKey
	jwks jwk.Set
	pub  jwk.Key
}

// Load builds a Set from src.
func Load(src Source) (*Set, error) {
	kid := src.Kid
	if kid == "" {
		kid = uuid.NewString()
	}

	var key *rsa.PrivateKey
	if src.PEM != "" {
		key = parsePEM([]byte(src.PEM))
	}
	if key == nil && src.B64 != "" {
		if der, err := base64.StdEncoding.DecodeString(src.B64); err == nil {
			key = parsePEM(der)
		}
	}
	if key == nil && (src.PEM != "" || src.B64 != "") {
		return nil, errors.New("keys: configured signing key is not a valid RSA PEM")
	}
	if key == nil {
		gen, err := Generate()
		if err != nil {
			return nil, err
		}
		key = gen
		logger.Warn("keys: generated ephemeral RSA signing key kid=%s; sessions will not survive a restart", kid)
	}
	return FromPrivateKey(kid, key)
}

// FromPrivateKey wraps an existing key.
func FromPrivateKey(kid string, key *rsa.PrivateKey) (*Set, error) {
	pub, err := jwk.FromRaw(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	_ = pub.Set(jwk.KeyIDKey, kid)
	_ = pub.Set(jwk.AlgorithmKey, "RS256")
	_ = pub.Set(jwk.KeyUsageKey, "sig")

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, err
	}
	return &Set{kid: kid, key: key, jwks: set, pub: pub}, nil
}

// Generate creates a fresh 2048-bit RSA key.
func Generate() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}

// EncodePEM renders key as a PKCS#1 PEM block.
func EncodePEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func parsePEM(data []byte) *rsa.PrivateKey {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k
	}
	if pkcs8, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rk, ok := pkcs8.(*rsa.PrivateKey); ok {
			return rk
		}
	}
	return nil
}

// JWKSJSON returns the JWKS as JSON bytes.
func (s *Set) JWKSJSON() ([]byte, error) {
	return json.Marshal(s.jwks)
}

// PublicSet is the verification key set.
func (s *Set) PublicSet() jwk.Set { return s.jwks }

// PrivateKey returns the signing key.
func (s *Set) PrivateKey() *rsa.PrivateKey { return s.key }

// Kid returns current key id.
func (s *Set) Kid() string { return s.kid }
