// Package auth encodes session state into signed tokens handed to clients.
package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/server/session"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Claims carries the session state. Expiry is enforced by the session policy
// rather than by the token so an expired session can be told apart from a
// forged one.
type Claims struct {
	jwt.RegisteredClaims
	Identity string `json:"sid,omitempty"`
	// Codename is sealed so the token never exposes it in clear.
	Codename      string `json:"scn,omitempty"`
	SessionExpiry int64  `json:"sexp,omitempty"`
}

// JWTManager signs session tokens with HS256.
type JWTManager struct {
	secret []byte
	aead   cipher.AEAD
}

func NewJWTManager(secret []byte) (*JWTManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	defer common.WipeByteArray(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("deaddrop-session-codename")), key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &JWTManager{secret: append([]byte(nil), secret...), aead: aead}, nil
}

// Encode returns the token for st; the anonymous state encodes to "".
func (m *JWTManager) Encode(st session.State) (string, error) {
	if st.IsZero() {
		return "", nil
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
		Identity:         st.Identity,
		SessionExpiry:    st.ExpiresAt.UnixNano(),
	}
	if st.Codename != "" {
		sealed, err := m.seal(st.Codename)
		if err != nil {
			return "", err
		}
		claims.Codename = sealed
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Decode verifies token and returns its state. An empty token is the
// anonymous state; anything unverifiable is common.ErrInvalidToken.
func (m *JWTManager) Decode(token string) (session.State, error) {
	if token == "" {
		return session.State{}, nil
	}
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return session.State{}, common.ErrInvalidToken
	}

	st := session.State{Identity: claims.Identity}
	if claims.SessionExpiry != 0 {
		st.ExpiresAt = time.Unix(0, claims.SessionExpiry).UTC()
	}
	if claims.Codename != "" {
		c, err := m.open(claims.Codename)
		if err != nil {
			return session.State{}, common.ErrInvalidToken
		}
		st.Codename = c
	}
	return st, nil
}

func (m *JWTManager) seal(s string) (string, error) {
	nonce := make([]byte, m.aead.NonceSize(), m.aead.NonceSize()+len(s)+m.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(m.aead.Seal(nonce, nonce, []byte(s), nil)), nil
}

func (m *JWTManager) open(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	if len(b) < m.aead.NonceSize() {
		return "", fmt.Errorf("sealed value too short")
	}
	pt, err := m.aead.Open(nil, b[:m.aead.NonceSize()], b[m.aead.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
