package domain

// LoginErrorKind classifies every failed login outcome.
type LoginErrorKind string

const (
	LoginErrorMissingCredentials LoginErrorKind = "MISSING_CREDENTIALS"
	LoginErrorInvalidCredentials LoginErrorKind = "INVALID_CREDENTIALS"
	LoginErrorUserBlocked        LoginErrorKind = "USER_BLOCKED"
	LoginErrorUserInactive       LoginErrorKind = "USER_INACTIVE"
	LoginErrorInternal           LoginErrorKind = "INTERNAL_ERROR"
)

// LoginOutcomeSuccess labels successful logins in metrics and events.
const LoginOutcomeSuccess = "SUCCESS"

// CredentialEncoding identifies how a stored credential is encoded.
type CredentialEncoding string

const (
	CredentialEncodingLegacy    CredentialEncoding = "legacy"
	CredentialEncodingBcrypt    CredentialEncoding = "bcrypt"
	CredentialEncodingArgon2id  CredentialEncoding = "argon2id"
	CredentialEncodingMalformed CredentialEncoding = "malformed"
)

// IsModern reports whether the encoding is a salted hash.
func (e CredentialEncoding) IsModern() bool {
	return e == CredentialEncodingBcrypt || e == CredentialEncodingArgon2id
}
