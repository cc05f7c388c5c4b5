package auth

import (
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/session-service/internal/config"
)

const argon2idPrefix = "$argon2id$"

// PasswordHasher hashes and checks account passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Matches(plain, hash string) bool
}

type passwordHasher struct {
	kind       string
	bcryptCost int
	params     *argon2id.Params
}

// NewPasswordHasher returns a hasher producing hashes of the given kind.
// Matches accepts hashes of either kind so switching algorithms does not
// lock out existing accounts.
func NewPasswordHasher(kind string, bcryptCost int) (PasswordHasher, error) {
	switch kind {
	case config.HasherBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case config.HasherArgon2id:
	default:
		return nil, fmt.Errorf("unknown password hasher %q", kind)
	}
	return &passwordHasher{kind: kind, bcryptCost: bcryptCost, params: argon2id.DefaultParams}, nil
}

func (h *passwordHasher) Hash(plain string) (string, error) {
	if h.kind == config.HasherArgon2id {
		return argon2id.CreateHash(plain, h.params)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *passwordHasher) Matches(plain, hash string) bool {
	if strings.HasPrefix(hash, argon2idPrefix) {
		ok, err := argon2id.ComparePasswordAndHash(plain, hash)
		return err == nil && ok
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
