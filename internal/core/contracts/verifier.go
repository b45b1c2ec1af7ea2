package contracts

// CredentialVerifier checks a bearer credential and returns its subject.
type CredentialVerifier interface {
	VerifyCredential(raw string) (string, error)
}
