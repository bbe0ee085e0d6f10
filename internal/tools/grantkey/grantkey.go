// Package grantkey generates the Ed25519 keypair behind respec grants and
// can mint a grant with the private half for manual testing.
package grantkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/hollowspire.game/internal/services/passives/grant"
)

// EnvResetGrantPrivateKey names the exported private key line. The passives
// service never reads it; the issuing side does.
const EnvResetGrantPrivateKey = "HOLLOWSPIRE_RESET_GRANT_PRIVATE_KEY"

// Config holds configuration for grant key generation.
type Config struct {
	// IssueCharacterID, when set, mints a reset grant for that character
	// instead of generating a keypair.
	IssueCharacterID string
	Issuer           string
	Audience         string
	PrivateKey       string
	TTL              time.Duration
}

// ParseConfig parses flags into a Config. The private key for -issue falls
// back to the environment so a freshly generated export line can be sourced
// and used directly.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{
		Issuer:   "hollowspire",
		Audience: "passives",
		TTL:      15 * time.Minute,
	}
	fs.StringVar(&cfg.IssueCharacterID, "issue", cfg.IssueCharacterID, "mint a reset grant for this character id instead of generating keys")
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "grant issuer claim")
	fs.StringVar(&cfg.Audience, "audience", cfg.Audience, "grant audience claim")
	fs.StringVar(&cfg.PrivateKey, "key", cfg.PrivateKey, "base64 private key for -issue (defaults to $"+EnvResetGrantPrivateKey+")")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "grant lifetime for -issue")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.PrivateKey == "" {
		cfg.PrivateKey = os.Getenv(EnvResetGrantPrivateKey)
	}
	return cfg, nil
}

// Run generates a keypair, or mints a grant when -issue is set, and writes
// the result to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if strings.TrimSpace(cfg.IssueCharacterID) != "" {
		return runIssue(cfg, out)
	}
	if reader == nil {
		reader = rand.Reader
	}

	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate reset grant key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", EnvResetGrantPrivateKey, base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", grant.EnvResetGrantPublicKey, base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}

func runIssue(cfg Config, out io.Writer) error {
	encoded := strings.TrimSpace(cfg.PrivateKey)
	if encoded == "" {
		return fmt.Errorf("-issue needs a private key via -key or $%s", EnvResetGrantPrivateKey)
	}
	keyBytes, err := decodeKey(encoded)
	if err != nil {
		return fmt.Errorf("decode private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}

	token, err := grant.Issue(cfg.IssueCharacterID, grant.IssueConfig{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      cfg.TTL,
	})
	if err != nil {
		return fmt.Errorf("issue reset grant: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func decodeKey(value string) ([]byte, error) {
	if raw, err := base64.RawStdEncoding.DecodeString(value); err == nil {
		return raw, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
