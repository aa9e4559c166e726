package password

import (
	"github.com/alexedwards/argon2id"
)

var DefaultParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2Hasher hashes passwords with argon2id; the pepper is appended before hashing.
type Argon2Hasher struct {
	params *argon2id.Params
	pepper string
}

func NewArgon2Hasher(pepper string, params *argon2id.Params) *Argon2Hasher {
	if params == nil {
		params = DefaultParams
	}
	return &Argon2Hasher{params: params, pepper: pepper}
}

func (h *Argon2Hasher) Hash(raw string) (string, error) {
	return argon2id.CreateHash(raw+h.pepper, h.params)
}

func (h *Argon2Hasher) Verify(raw, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(raw+h.pepper, hash)
}
