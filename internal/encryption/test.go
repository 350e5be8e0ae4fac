package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"ct-go/internal/ct"
)

// testMagic marks snapshots written by TestEncryptor.
var testMagic = []byte("CTSNAP-T")

// TestEncryptor frames data with a fixed marker instead of encrypting it.
// Output differs from the plaintext and round-trips without keys, which keeps
// backup and restore tests deterministic.
type TestEncryptor struct {
	passphrase string
}

var _ ct.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// Setup remembers the passphrase; Unlock rejects any other.
func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader(testMagic), r)); err != nil {
		return fmt.Errorf("framing snapshot: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (ct.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("wrong passphrase")
	}
	return testDecrypter{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

type testDecrypter struct{}

func (testDecrypter) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(testMagic))
	if err != nil || !bytes.Equal(magic, testMagic) {
		return fmt.Errorf("not a test-encrypted snapshot")
	}
	if _, err := br.Discard(len(testMagic)); err != nil {
		return err
	}
	if _, err := io.Copy(w, br); err != nil {
		return fmt.Errorf("unframing snapshot: %w", err)
	}
	return nil
}
