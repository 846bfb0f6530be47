package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHashers(t *testing.T) map[string]Hasher {
	t.Helper()
	return map[string]Hasher{
		"bcrypt":   NewBcryptHasher(4, 8),
		"argon2id": NewArgon2Hasher(1, 1024, 1, 8),
	}
}

func TestHasher_RoundTrip(t *testing.T) {
	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			hashed, err := h.Hash("correct horse battery")
			require.NoError(t, err)
			assert.NotContains(t, hashed, "correct horse battery")

			assert.True(t, h.Verify("correct horse battery", hashed))
			assert.False(t, h.Verify("correct horse batterY", hashed))
			assert.False(t, h.Verify("", hashed))
		})
	}
}

func TestHasher_FreshSalt(t *testing.T) {
	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			first, err := h.Hash("same-password")
			require.NoError(t, err)
			second, err := h.Hash("same-password")
			require.NoError(t, err)

			assert.NotEqual(t, first, second)
			assert.True(t, h.Verify("same-password", first))
			assert.True(t, h.Verify("same-password", second))
		})
	}
}

func TestHasher_SelfDescribing(t *testing.T) {
	bcryptHash, err := NewBcryptHasher(4, 8).Hash("password-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(bcryptHash, "$2a$04$"))

	argonHash, err := NewArgon2Hasher(1, 1024, 1, 8).Hash("password-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(argonHash, "$argon2id$v=19$m=1024,t=1,p=1$"))
}

func TestHasher_Policy(t *testing.T) {
	for name, h := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := h.Hash("short")
			assert.ErrorIs(t, err, ErrPasswordPolicy)

			_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
			assert.ErrorIs(t, err, ErrPasswordPolicy)

			_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes))
			assert.NoError(t, err)
		})
	}
}

func TestHasher_MalformedHashes(t *testing.T) {
	malformed := []string{
		"",
		"not-a-hash",
		"$2a$04$tooshort",
		"$argon2id$",
		"$argon2id$v=19$m=1024,t=1,p=1$$",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1024,t=0,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=0$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$c2hvcnQ",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
	}

	h, err := NewHasher(HasherConfig{BcryptCost: 4})
	require.NoError(t, err)

	for _, hashed := range malformed {
		t.Run(hashed, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, h.Verify("password-1", hashed))
			})
			for name, single := range testHashers(t) {
				assert.NotPanics(t, func() {
					assert.False(t, single.Verify("password-1", hashed), name)
				})
			}
		})
	}
}

func TestNewHasher(t *testing.T) {
	t.Run("defaults to bcrypt", func(t *testing.T) {
		h, err := NewHasher(HasherConfig{BcryptCost: 4})
		require.NoError(t, err)

		hashed, err := h.Hash("password-1")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hashed, "$2a$"))
	})

	t.Run("argon2id selected", func(t *testing.T) {
		h, err := NewHasher(HasherConfig{
			Algorithm:     AlgorithmArgon2id,
			BcryptCost:    4,
			Argon2Time:    1,
			Argon2Memory:  1024,
			Argon2Threads: 1,
		})
		require.NoError(t, err)

		hashed, err := h.Hash("password-1")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hashed, "$argon2id$"))
	})

	t.Run("verifies either format after switching", func(t *testing.T) {
		oldHash, err := NewBcryptHasher(4, 8).Hash("password-1")
		require.NoError(t, err)

		h, err := NewHasher(HasherConfig{
			Algorithm:     AlgorithmArgon2id,
			BcryptCost:    4,
			Argon2Time:    1,
			Argon2Memory:  1024,
			Argon2Threads: 1,
		})
		require.NoError(t, err)
		assert.True(t, h.Verify("password-1", oldHash))
	})

	t.Run("invalid configuration", func(t *testing.T) {
		tests := []struct {
			name string
			cfg  HasherConfig
		}{
			{"unknown algorithm", HasherConfig{Algorithm: "md5"}},
			{"bcrypt cost too low", HasherConfig{BcryptCost: 3}},
			{"bcrypt cost too high", HasherConfig{BcryptCost: 32}},
			{"argon2 memory too large", HasherConfig{Argon2Memory: argon2MaxMemory + 1}},
			{"min length too large", HasherConfig{MinLength: MaxPasswordBytes + 1}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewHasher(tt.cfg)
				assert.Error(t, err)
			})
		}
	})
}
