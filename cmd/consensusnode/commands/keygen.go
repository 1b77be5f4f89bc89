package commands

import (
	"encoding/hex"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/xxnithicxx/Consensus-Lab-Project/crypto/keys"
)

var (
	privKeyFile string
	pubKeyFile  string
)

// NewKeygenCmd produces a command that writes a new secp256k1 signing key
// pair to disk, for the optional block-signing capability of SPEC_FULL.md §3.
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a new validator signing key pair",
		RunE:  keygen,
	}
	cmd.Flags().StringVar(&privKeyFile, "priv", "priv_key", "File where the private key will be written")
	cmd.Flags().StringVar(&pubKeyFile, "pub", "key.pub", "File where the public key will be written")
	return cmd
}

func keygen(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(privKeyFile); err == nil {
		return fmt.Errorf("a key already lives at %s", privKeyFile)
	}

	priv, err := keys.Generate()
	if err != nil {
		return fmt.Errorf("generating signing key: %w", err)
	}

	if dir := path.Dir(privKeyFile); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("writing private key: %w", err)
		}
	}
	privHex := hex.EncodeToString(priv.Serialize())
	if err := os.WriteFile(privKeyFile, []byte(privHex), 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	fmt.Printf("Private key saved to: %s\n", privKeyFile)

	if dir := path.Dir(pubKeyFile); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("writing public key: %w", err)
		}
	}
	pub := keys.PublicKeyHex(priv.PubKey())
	if err := os.WriteFile(pubKeyFile, []byte(pub), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	fmt.Printf("Public key saved to: %s\n", pubKeyFile)

	return nil
}
