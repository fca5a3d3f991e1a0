package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clinicdash/internal/config"
	"clinicdash/internal/services/storage"
)

var errPasswordMismatch = errors.New("passwords do not match")

func newEncryptCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt every record and goal file in the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := global.loadConfig()
			store, err := storage.New(cfg.DataDirectory)
			if err != nil {
				return err
			}
			if store.IsEncrypted() {
				return storage.ErrAlreadyEncrypted
			}

			password, err := newPassword(cfg)
			if err != nil {
				return err
			}
			if err := store.EnableEncryption(password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Encrypted %s\n", cfg.DataDirectory)
			return nil
		},
	}
}

func newDecryptCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt the data directory and turn encryption off",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := global.loadConfig()
			store, err := storage.New(cfg.DataDirectory)
			if err != nil {
				return err
			}
			if !store.IsEncrypted() {
				return storage.ErrNotEncrypted
			}

			password, err := password(cfg, "Password: ")
			if err != nil {
				return err
			}
			if err := store.DisableEncryption(password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Decrypted %s\n", cfg.DataDirectory)
			return nil
		},
	}
}

// newPassword takes CLINIC_PASSWORD as is, or prompts twice
func newPassword(cfg *config.Config) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	first, err := config.ReadPassword("New password: ")
	if err != nil {
		return "", err
	}
	second, err := config.ReadPassword("Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPasswordMismatch
	}
	return first, nil
}
