package signer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// staticSigner implements Signer with a fixed signature.
type staticSigner struct {
	sig []byte
	err error
}

func (s *staticSigner) SignDetached(data []byte) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sig, nil
}

func (s *staticSigner) GetPublicKey() ([]byte, error) {
	return nil, nil
}

func TestSignFileWritesSignatureBesideArtifact(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgforge-test-signer-")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	artifact := filepath.Join(tmpDir, "pkg-1.0-1.noarch.pkg.tar.gz")
	if err := os.WriteFile(artifact, []byte("payload"), 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}

	want := []byte("-----BEGIN PGP SIGNATURE-----\n\nc2ln\n-----END PGP SIGNATURE-----\n")
	sigPath, err := SignFile(&staticSigner{sig: want}, artifact)
	if err != nil {
		t.Fatalf("SignFile failed: %v", err)
	}
	if sigPath != artifact+".asc" {
		t.Errorf("Signature path = %q, want %q", sigPath, artifact+".asc")
	}

	got, err := os.ReadFile(sigPath)
	if err != nil {
		t.Fatalf("Signature not on disk: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Signature content = %q, want %q", got, want)
	}
}

func TestSignFileFailures(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgforge-test-signer-")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Missing artifact
	if _, err := SignFile(&staticSigner{}, filepath.Join(tmpDir, "absent.pkg.tar.gz")); err == nil {
		t.Errorf("Expected error for a missing artifact")
	}

	// A signer failure propagates and leaves no signature file behind
	artifact := filepath.Join(tmpDir, "pkg-1.0-1.noarch.pkg.tar.gz")
	if err := os.WriteFile(artifact, []byte("payload"), 0644); err != nil {
		t.Fatalf("Failed to write artifact: %v", err)
	}
	if _, err := SignFile(&staticSigner{err: errors.New("no key material")}, artifact); err == nil {
		t.Errorf("Expected the signer failure to propagate")
	}
	if _, err := os.Stat(artifact + ".asc"); !os.IsNotExist(err) {
		t.Errorf("No signature file may exist after a failure")
	}
}

func TestNewGPGSignerRejectsBadKeyMaterial(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pkgforge-test-signer-")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if _, err := NewGPGSigner("", ""); err == nil {
		t.Errorf("Expected error for an empty key path")
	}
	if _, err := NewGPGSigner(filepath.Join(tmpDir, "absent.key"), ""); err == nil {
		t.Errorf("Expected error for a missing key file")
	}

	garbage := filepath.Join(tmpDir, "garbage.key")
	if err := os.WriteFile(garbage, []byte("this is not a key\n"), 0600); err != nil {
		t.Fatalf("Failed to write key file: %v", err)
	}
	if _, err := NewGPGSigner(garbage, ""); err == nil {
		t.Errorf("Expected error for unparseable key material")
	}
}
