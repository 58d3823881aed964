package main

import (
	"github.com/fgeck/mysql-remote-backup/internal/credentials"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	encryptIn        string
	encryptOut       string
	encryptRecipient string
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt-creds",
	Short: "Encrypt a plaintext credentials file",
	Long: `Encrypt a plaintext YAML credentials file with an age recipient so it can
be referenced via CREDENTIALS_FILE. The plaintext file holds the secrets
the environment would otherwise provide:

  db_password: "secret"
  ssh_key_passphrase: "passphrase"

Generate a key pair with age-keygen; at backup time the identity file is
referenced via CREDENTIALS_KEY_PATH.`,
	RunE: encryptCredentials,
}

func init() {
	encryptCmd.Flags().StringVar(&encryptIn, "in", "credentials.yaml", "input credentials file")
	encryptCmd.Flags().StringVar(&encryptOut, "out", "credentials.yaml.age", "output encrypted file")
	encryptCmd.Flags().StringVar(&encryptRecipient, "recipient", "", "age recipient (public key) file (required)")
	_ = encryptCmd.MarkFlagRequired("recipient")
}

func encryptCredentials(cmd *cobra.Command, args []string) error {
	mgr, err := credentials.NewEncryptionManager(encryptOut, encryptRecipient)
	if err != nil {
		log.Error().Err(err).Msg("failed to load recipient")
		return err
	}

	if err := mgr.EncryptFile(encryptIn); err != nil {
		log.Error().Err(err).Msg("failed to encrypt credentials")
		return err
	}

	log.Info().Str("file", encryptOut).Msg("credentials encrypted")
	return nil
}
