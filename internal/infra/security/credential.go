package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"
	"github.com/azo221017m-hub/webposcrumen-sub000/internal/core/port"
)

// Scheme names the hash scheme new credentials are written with.
type Scheme string

const (
	SchemeBcrypt   Scheme = "bcrypt"
	SchemeArgon2id Scheme = "argon2id"
)

const (
	bcryptEncodedLength = 60
	bcryptMarker        = "$2"
	bcryptMaxSecret     = 72
	// DefaultBcryptCost is the work factor applied when none is configured.
	DefaultBcryptCost = 12
)

var (
	bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

	// ErrUnsupportedScheme indicates an unknown hash scheme was configured.
	ErrUnsupportedScheme = errors.New("credential: unsupported hash scheme")
)

// CredentialOptions configures the verifier and the hashes produced on migration.
type CredentialOptions struct {
	Scheme     Scheme
	BcryptCost int
	Argon2     Argon2Config
}

// CredentialVerifier implements port.CredentialVerifier over legacy plaintext and modern hashes.
type CredentialVerifier struct {
	scheme     Scheme
	bcryptCost int
	argon2     Argon2Config
}

// NewCredentialVerifier validates opts and constructs a verifier.
func NewCredentialVerifier(opts CredentialOptions) (*CredentialVerifier, error) {
	scheme := Scheme(strings.ToLower(strings.TrimSpace(string(opts.Scheme))))
	if scheme == "" {
		scheme = SchemeBcrypt
	}

	v := &CredentialVerifier{scheme: scheme, bcryptCost: opts.BcryptCost, argon2: opts.Argon2}

	switch scheme {
	case SchemeBcrypt:
		if v.bcryptCost == 0 {
			v.bcryptCost = DefaultBcryptCost
		}
		if v.bcryptCost < bcrypt.MinCost || v.bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("credential: bcrypt cost %d outside [%d,%d]", v.bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case SchemeArgon2id:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, opts.Scheme)
	}

	// argon2 also hashes secrets too long for bcrypt, so it is validated for both schemes.
	if v.argon2 == (Argon2Config{}) {
		v.argon2 = DefaultArgon2Config()
	}
	if err := v.argon2.Validate(); err != nil {
		return nil, err
	}

	return v, nil
}

// Scheme returns the scheme used by Migrate.
func (v *CredentialVerifier) Scheme() Scheme {
	return v.scheme
}

// ClassifyCredential inspects the structure of a stored credential.
// Values carrying a modern marker that fail the structural check are malformed, not legacy.
func ClassifyCredential(stored string) domain.CredentialEncoding {
	switch {
	case strings.HasPrefix(stored, argon2Variant+"$"):
		if _, _, _, err := decodeArgon2Hash(stored); err != nil {
			return domain.CredentialEncodingMalformed
		}
		return domain.CredentialEncodingArgon2id
	case strings.HasPrefix(stored, bcryptMarker):
		if len(stored) != bcryptEncodedLength || !hasBcryptPrefix(stored) {
			return domain.CredentialEncodingMalformed
		}
		return domain.CredentialEncodingBcrypt
	default:
		return domain.CredentialEncodingLegacy
	}
}

func hasBcryptPrefix(stored string) bool {
	for _, prefix := range bcryptPrefixes {
		if strings.HasPrefix(stored, prefix) {
			return true
		}
	}
	return false
}

// Verify compares secret against stored. It never fails: unusable credentials simply do not match.
func (v *CredentialVerifier) Verify(secret, stored string) port.VerifyResult {
	encoding := ClassifyCredential(stored)
	result := port.VerifyResult{Encoding: encoding}

	if secret == "" || stored == "" {
		return result
	}

	switch encoding {
	case domain.CredentialEncodingBcrypt:
		result.Matched = bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
	case domain.CredentialEncodingArgon2id:
		ok, err := verifyArgon2(secret, stored)
		result.Matched = err == nil && ok
	case domain.CredentialEncodingLegacy:
		result.Matched = subtle.ConstantTimeCompare([]byte(secret), []byte(stored)) == 1
		result.NeedsMigration = result.Matched
	}

	return result
}

// Migrate hashes secret with the configured scheme and work factor. Secrets
// longer than bcrypt accepts are hashed with argon2id instead.
func (v *CredentialVerifier) Migrate(secret string) (string, error) {
	switch v.scheme {
	case SchemeArgon2id:
		return hashArgon2(secret, v.argon2)
	case SchemeBcrypt:
		if len(secret) > bcryptMaxSecret {
			return hashArgon2(secret, v.argon2)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(secret), v.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("credential: bcrypt hash: %w", err)
		}
		return string(hashed), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, v.scheme)
	}
}

var _ port.CredentialVerifier = (*CredentialVerifier)(nil)
