package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Cantido/hematite/internal/apperror"
)

// KeySource holds exactly one verification key: either an HMAC shared
// secret or an RSA public key, matching spec §6.3's "HMAC or RSA" wire
// contract. Exactly one of the two fields should be set.
type KeySource struct {
	HMACSecret   []byte
	RSAPublicKey []byte // PEM-encoded
}

// Verifier validates JWT bearer tokens against a fixed key and audience.
type Verifier struct {
	hmacSecret []byte
	rsaPublic  *rsa.PublicKey
	audience   string
}

// Claims is the subset of a verified token's claims hematite cares about.
type Claims struct {
	Subject string
}

// NewVerifier builds a Verifier from a key source and the audience every
// token must include.
func NewVerifier(ks KeySource, audience string) (*Verifier, error) {
	v := &Verifier{hmacSecret: ks.HMACSecret, audience: audience}
	if len(ks.RSAPublicKey) > 0 {
		block, _ := pem.Decode(ks.RSAPublicKey)
		if block == nil {
			return nil, errors.New("auth: invalid RSA public key PEM")
		}
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("auth: key is not an RSA public key")
		}
		v.rsaPublic = rsaPub
	}
	if v.hmacSecret == nil && v.rsaPublic == nil {
		return nil, errors.New("auth: no verification key configured")
	}
	return v, nil
}

// Verify parses and validates a bearer token string, checking signature,
// expiry, and audience. Any failure is returned as an *apperror.Error
// with Kind Unauthenticated.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, v.keyFunc, jwt.WithAudience(v.audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperror.Wrap(apperror.Unauthenticated, err, "invalid bearer token: %v", err)
	}
	if !token.Valid {
		return nil, apperror.New(apperror.Unauthenticated, "invalid bearer token")
	}
	if claims.Subject == "" {
		return nil, apperror.New(apperror.Unauthenticated, "bearer token missing sub claim")
	}
	return &Claims{Subject: claims.Subject}, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.hmacSecret == nil {
			return nil, errors.New("auth: token is HMAC-signed but no HMAC secret is configured")
		}
		return v.hmacSecret, nil
	case *jwt.SigningMethodRSA:
		if v.rsaPublic == nil {
			return nil, errors.New("auth: token is RSA-signed but no RSA public key is configured")
		}
		return v.rsaPublic, nil
	default:
		return nil, errors.New("auth: unsupported signing method " + token.Method.Alg())
	}
}
