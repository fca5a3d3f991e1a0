package storage

import (
	"bytes"
	"io"
	"os"

	"filippo.io/age"
)

// encryptData encrypts data for the scrypt recipient
func encryptData(data []byte, recipient *age.ScryptRecipient) ([]byte, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decryptData decrypts Age data with the scrypt identity
func decryptData(data []byte, identity *age.ScryptIdentity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// rewriteFile replaces a file's content through transform, skipping the
// write when transform reports no change.
func rewriteFile(path string, transform func([]byte) ([]byte, bool, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, changed, err := transform(data)
	if err != nil || !changed {
		return err
	}
	return atomicWrite(path, out, 0644)
}
