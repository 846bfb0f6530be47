package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// MinSecretBytes is the minimum HMAC key size (256 bits).
	MinSecretBytes = 32

	// MaxTokenBytes bounds both minted tokens and verifier input.
	MaxTokenBytes = 4096
)

// Claims is the verified content of a session token. It is the only input
// the access guard needs.
type Claims struct {
	Subject   string
	Email     string
	Role      Role
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}

// tokenClaims is the wire form of Claims.
type tokenClaims struct {
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// CodecConfig configures a Codec. TTL applies to every minted token.
type CodecConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// Codec mints and verifies HS256 session tokens for a single issuer.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg CodecConfig, opts ...CodecOption) (*Codec, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, ErrWeakSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be greater than zero")
	}

	c := &Codec{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issuer returns the issuer tag stamped on minted tokens.
func (c *Codec) Issuer() string { return c.issuer }

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Mint issues a token for subject with iat = now and exp = now + TTL.
func (c *Codec) Mint(subject, email string, role Role) (string, Claims, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", Claims{}, errors.New("subject is required")
	}
	if !role.Valid() {
		return "", Claims{}, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(role))
	}

	now := c.now().UTC().Truncate(time.Second)
	tc := tokenClaims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	if len(signed) > MaxTokenBytes {
		return "", Claims{}, fmt.Errorf("token exceeds %d bytes", MaxTokenBytes)
	}
	return signed, tc.toClaims(), nil
}

// Verify checks token against the current time.
func (c *Codec) Verify(token string) (Claims, error) {
	return c.VerifyAt(token, c.now())
}

// VerifyAt checks token as of now. The signature is authenticated over the
// raw header and payload bytes before anything inside them is decoded.
func (c *Codec) VerifyAt(token string, now time.Time) (Claims, error) {
	if token == "" || len(token) > MaxTokenBytes {
		return Claims{}, ErrMalformed
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Claims{}, ErrMalformed
	}

	if !c.signatureValid(token[:len(parts[0])+1+len(parts[1])], parts[2]) {
		return Claims{}, ErrBadSignature
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var tc tokenClaims
	if _, err := parser.ParseWithClaims(token, &tc, c.key); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if tc.Issuer != c.issuer {
		return Claims{}, ErrWrongIssuer
	}
	if strings.TrimSpace(tc.Subject) == "" || tc.IssuedAt == nil || !tc.Role.Valid() {
		return Claims{}, ErrMalformed
	}
	return tc.toClaims(), nil
}

func (c *Codec) signatureValid(signingInput, encodedSig string) bool {
	sig, err := base64.RawURLEncoding.Strict().DecodeString(encodedSig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(signingInput))
	return hmac.Equal(sig, mac.Sum(nil))
}

func (c *Codec) key(*jwt.Token) (any, error) {
	return c.secret, nil
}

func (tc tokenClaims) toClaims() Claims {
	out := Claims{
		Subject: tc.Subject,
		Email:   tc.Email,
		Role:    tc.Role,
		Issuer:  tc.Issuer,
		ID:      tc.ID,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time.UTC()
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time.UTC()
	}
	return out
}
