package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hasher turns plaintext passwords into self-describing salted hashes and
// checks candidates against them.
type Hasher interface {
	// Hash returns a freshly salted hash of plaintext.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches hashed. Malformed or
	// unrecognized hashes yield false.
	Verify(plaintext, hashed string) bool
}

// HashAlgorithm selects the algorithm used for new hashes.
type HashAlgorithm string

const (
	AlgorithmBcrypt   HashAlgorithm = "bcrypt"
	AlgorithmArgon2id HashAlgorithm = "argon2id"
)

// MaxPasswordBytes is the bcrypt input limit; applied to every algorithm so
// switching algorithms never changes which passwords are accepted.
const MaxPasswordBytes = 72

const (
	argon2KeyLen     = 32
	argon2SaltLen    = 16
	argon2MinKeyLen  = 16
	argon2MaxMemory  = 1 << 20 // KiB
	argon2MaxTime    = 16
	argon2MaxThreads = 16
)

// HasherConfig configures NewHasher.
type HasherConfig struct {
	Algorithm     HashAlgorithm
	BcryptCost    int
	Argon2Time    uint32
	Argon2Memory  uint32 // KiB
	Argon2Threads uint8
	MinLength     int
}

// ApplyDefaults fills zero-valued fields.
func (c *HasherConfig) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmBcrypt
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.Argon2Time == 0 {
		c.Argon2Time = 3
	}
	if c.Argon2Memory == 0 {
		c.Argon2Memory = 64 * 1024
	}
	if c.Argon2Threads == 0 {
		c.Argon2Threads = 1
	}
	if c.MinLength == 0 {
		c.MinLength = 8
	}
}

// Validate checks the configuration.
func (c *HasherConfig) Validate() error {
	switch c.Algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return fmt.Errorf("unsupported hash algorithm %q (use bcrypt or argon2id)", c.Algorithm)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d (got %d)", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.Argon2Time > argon2MaxTime || c.Argon2Memory > argon2MaxMemory || c.Argon2Threads > argon2MaxThreads {
		return fmt.Errorf("argon2id parameters out of range (t=%d m=%d p=%d)", c.Argon2Time, c.Argon2Memory, c.Argon2Threads)
	}
	if c.Argon2Memory < 8*uint32(c.Argon2Threads) {
		return fmt.Errorf("argon2id memory must be at least 8 KiB per thread")
	}
	if c.MinLength < 1 || c.MinLength > MaxPasswordBytes {
		return fmt.Errorf("password min length must be between 1 and %d (got %d)", MaxPasswordBytes, c.MinLength)
	}
	return nil
}

// NewHasher builds the configured hasher. The result hashes with the selected
// algorithm and verifies both bcrypt and argon2id hashes, so stored
// credentials survive an algorithm switch.
func NewHasher(cfg HasherConfig) (Hasher, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &BcryptHasher{cost: cfg.BcryptCost, minLength: cfg.MinLength}
	a := &Argon2Hasher{
		time:      cfg.Argon2Time,
		memory:    cfg.Argon2Memory,
		threads:   cfg.Argon2Threads,
		minLength: cfg.MinLength,
	}

	h := &multiHasher{bcrypt: b, argon2: a, primary: b}
	if cfg.Algorithm == AlgorithmArgon2id {
		h.primary = a
	}
	return h, nil
}

type multiHasher struct {
	bcrypt  *BcryptHasher
	argon2  *Argon2Hasher
	primary Hasher
}

func (h *multiHasher) Hash(plaintext string) (string, error) {
	return h.primary.Hash(plaintext)
}

func (h *multiHasher) Verify(plaintext, hashed string) bool {
	if strings.HasPrefix(hashed, "$argon2id$") {
		return h.argon2.Verify(plaintext, hashed)
	}
	return h.bcrypt.Verify(plaintext, hashed)
}

func checkPolicy(plaintext string, minLength int) error {
	if len(plaintext) < minLength {
		return fmt.Errorf("%w: minimum length is %d", ErrPasswordPolicy, minLength)
	}
	if len(plaintext) > MaxPasswordBytes {
		return fmt.Errorf("%w: maximum length is %d bytes", ErrPasswordPolicy, MaxPasswordBytes)
	}
	return nil
}

// BcryptHasher hashes with bcrypt ($2a$<cost>$...).
type BcryptHasher struct {
	cost      int
	minLength int
}

// NewBcryptHasher returns a bcrypt hasher with the given cost.
func NewBcryptHasher(cost, minLength int) *BcryptHasher {
	return &BcryptHasher{cost: cost, minLength: minLength}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if err := checkPolicy(plaintext, h.minLength); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(plaintext, hashed string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext)) == nil
}

// Argon2Hasher hashes with argon2id in PHC format:
// $argon2id$v=19$m=<KiB>,t=<iterations>,p=<threads>$<salt>$<hash>
type Argon2Hasher struct {
	time      uint32
	memory    uint32
	threads   uint8
	minLength int
}

// NewArgon2Hasher returns an argon2id hasher with the given parameters.
func NewArgon2Hasher(time, memory uint32, threads uint8, minLength int) *Argon2Hasher {
	return &Argon2Hasher{time: time, memory: memory, threads: threads, minLength: minLength}
}

func (h *Argon2Hasher) Hash(plaintext string) (string, error) {
	if err := checkPolicy(plaintext, h.minLength); err != nil {
		return "", err
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.time, h.memory, h.threads, argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory, h.time, h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Verify(plaintext, hashed string) bool {
	p, ok := decodeArgon2(hashed)
	if !ok {
		return false
	}
	candidate := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(p.key, candidate) == 1
}

type argon2Hash struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

// decodeArgon2 parses a PHC string and rejects parameters that would make
// argon2.IDKey panic or allocate unbounded memory.
func decodeArgon2(encoded string) (argon2Hash, bool) {
	var p argon2Hash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, false
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, false
	}
	if p.time < 1 || p.time > argon2MaxTime ||
		p.threads < 1 || p.threads > argon2MaxThreads ||
		p.memory < 8*uint32(p.threads) || p.memory > argon2MaxMemory {
		return p, false
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return p, false
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) < argon2MinKeyLen {
		return p, false
	}
	return p, true
}
