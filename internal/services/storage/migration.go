package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

var (
	ErrAlreadyEncrypted = errors.New("encryption is already enabled")
	ErrNotEncrypted     = errors.New("encryption is not enabled")
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// dataFile reports whether a path holds clinic data (record files or
// goals) that encryption should cover.
func dataFile(path string) bool {
	if IsInternal(path) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".csv" || ext == ".json"
}

// dataFiles walks the base directory and returns every data file
func (s *Storage) dataFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && dataFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// EnableEncryption encrypts every data file with the password
func (s *Storage) EnableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		return ErrAlreadyEncrypted
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	verify, err := encryptData([]byte(verifyMagic), recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt verification file: %w", err)
	}
	if err := os.WriteFile(verifyPath, verify, 0644); err != nil {
		return fmt.Errorf("failed to write verification file: %w", err)
	}

	files, err := s.dataFiles()
	if err != nil {
		os.Remove(verifyPath)
		return fmt.Errorf("failed to scan files: %w", err)
	}

	for i, path := range files {
		if err := rewriteFile(path, encryptWith(recipient)); err != nil {
			s.rollback(files[:i], identity)
			os.Remove(verifyPath)
			return fmt.Errorf("failed to encrypt %s: %w", filepath.Base(path), err)
		}
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("encrypted"), 0644); err != nil {
		return fmt.Errorf("failed to create marker file: %w", err)
	}

	s.encrypted = true
	s.identity = identity
	s.recipient = recipient
	return nil
}

// DisableEncryption decrypts every data file (requires the current password)
func (s *Storage) DisableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return ErrNotEncrypted
	}

	identity, err := s.verifyPassword(password)
	if err != nil {
		return err
	}

	files, err := s.dataFiles()
	if err != nil {
		return fmt.Errorf("failed to scan files: %w", err)
	}
	for _, path := range files {
		if err := rewriteFile(path, decryptWith(identity)); err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", filepath.Base(path), err)
		}
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	s.encrypted = false
	s.identity = nil
	s.recipient = nil
	return nil
}

func encryptWith(recipient *age.ScryptRecipient) func([]byte) ([]byte, bool, error) {
	return func(data []byte) ([]byte, bool, error) {
		if isAgeEncrypted(data) {
			return nil, false, nil
		}
		out, err := encryptData(data, recipient)
		return out, err == nil, err
	}
}

func decryptWith(identity *age.ScryptIdentity) func([]byte) ([]byte, bool, error) {
	return func(data []byte) ([]byte, bool, error) {
		if !isAgeEncrypted(data) {
			return nil, false, nil
		}
		out, err := decryptData(data, identity)
		return out, err == nil, err
	}
}

// rollback decrypts files encrypted before a failed migration (best effort)
func (s *Storage) rollback(files []string, identity *age.ScryptIdentity) {
	for _, path := range files {
		rewriteFile(path, decryptWith(identity))
	}
}
