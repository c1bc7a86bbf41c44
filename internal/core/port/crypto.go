package port

import "github.com/azo221017m-hub/webposcrumen-sub000/internal/core/domain"

// VerifyResult reports whether a secret matched and whether the stored credential should be rehashed.
type VerifyResult struct {
	Matched        bool
	NeedsMigration bool
	Encoding       domain.CredentialEncoding
}

// CredentialVerifier checks secrets against stored credentials and produces modern hashes.
type CredentialVerifier interface {
	Verify(secret, stored string) VerifyResult
	Migrate(secret string) (string, error)
}
