package signer

// Signer signs built package archives
type Signer interface {
	// SignDetached creates an armored detached signature over data
	SignDetached(data []byte) ([]byte, error)

	// GetPublicKey returns the armored public key
	GetPublicKey() ([]byte, error)
}
