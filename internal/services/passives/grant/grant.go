// Package grant verifies signed respec grants for tree resets. Refunded
// points are an earned currency, so a reset must present a server-issued
// token rather than a bare HTTP call.
package grant

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
	"github.com/louisbranch/hollowspire.game/internal/platform/id"
)

// ScopeTreeReset is the only scope a reset grant may carry.
const ScopeTreeReset = "tree.reset"

// Environment variables read by LoadConfigFromEnv.
const (
	EnvResetGrantIssuer    = "HOLLOWSPIRE_RESET_GRANT_ISSUER"
	EnvResetGrantAudience  = "HOLLOWSPIRE_RESET_GRANT_AUDIENCE"
	EnvResetGrantPublicKey = "HOLLOWSPIRE_RESET_GRANT_PUBLIC_KEY"
)

// resetGrantEnv holds raw env values before post-parse validation.
type resetGrantEnv struct {
	Issuer    string `env:"HOLLOWSPIRE_RESET_GRANT_ISSUER"`
	Audience  string `env:"HOLLOWSPIRE_RESET_GRANT_AUDIENCE"`
	PublicKey string `env:"HOLLOWSPIRE_RESET_GRANT_PUBLIC_KEY"`
}

// Config defines how reset grants are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Configured reports whether a verifier key is present. Without one the
// reset endpoint refuses all grants.
func (c Config) Configured() bool {
	return c.Issuer != "" && c.Audience != "" && len(c.Key) == ed25519.PublicKeySize
}

// Claims captures validated reset grant claims.
type Claims struct {
	Issuer      string
	Audience    []string
	ExpiresAt   time.Time
	NotBefore   time.Time
	IssuedAt    time.Time
	JWTID       string
	CharacterID string
	Scope       string
}

// resetClaims is the internal claims type used for JWT parsing.
type resetClaims struct {
	jwt.RegisteredClaims
	CharacterID string `json:"character_id"`
	Scope       string `json:"scope"`
}

// LoadConfigFromEnv reads reset grant verification configuration. A missing
// public key yields an unconfigured Config rather than an error so the
// service can boot with resets disabled.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw resetGrantEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse reset grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if now == nil {
		now = time.Now
	}
	if publicKey == "" {
		return Config{Now: now}, nil
	}
	if issuer == "" {
		return Config{}, fmt.Errorf("HOLLOWSPIRE_RESET_GRANT_ISSUER is required when a public key is set")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("HOLLOWSPIRE_RESET_GRANT_AUDIENCE is required when a public key is set")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode reset grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("reset grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Verify checks a reset grant token against the expected character.
func Verify(grant string, characterID string, cfg Config) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, apperrors.New(apperrors.CodeResetGrantInvalid, "reset grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !cfg.Configured() {
		return Claims{}, errors.New("reset grant verifier is not configured")
	}

	var parsed resetClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeResetGrantMismatch,
			"reset grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeResetGrantMismatch,
			"reset grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}

	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeResetGrantInvalid, "reset grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeResetGrantInvalid, "reset grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeResetGrantExpired, "reset grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return Claims{}, apperrors.New(apperrors.CodeResetGrantInvalid, "reset grant not active yet")
		}
	}

	if parsed.Scope != ScopeTreeReset {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeResetGrantMismatch,
			"reset grant scope mismatch",
			map[string]string{"Field": "scope"},
		)
	}
	if strings.TrimSpace(parsed.CharacterID) == "" || parsed.CharacterID != characterID {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeResetGrantMismatch,
			"reset grant character mismatch",
			map[string]string{"Field": "character_id"},
		)
	}

	claims := Claims{
		Issuer:      parsed.Issuer,
		Audience:    []string(parsed.Audience),
		ExpiresAt:   exp,
		JWTID:       parsed.ID,
		CharacterID: parsed.CharacterID,
		Scope:       parsed.Scope,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// IssueConfig defines how reset grants are minted.
type IssueConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// Issue mints a reset grant for one character. It backs operational tooling
// and tests; the game's reward pipeline is the production issuer.
func Issue(characterID string, cfg IssueConfig) (string, error) {
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return "", fmt.Errorf("character id is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return "", fmt.Errorf("issuer and audience are required")
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("signing key must be %d bytes", ed25519.PrivateKeySize)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	jti, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}

	now := cfg.Now().UTC()
	claims := resetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		CharacterID: characterID,
		Scope:       ScopeTreeReset,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign reset grant: %w", err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeResetGrantInvalid, "reset grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeResetGrantInvalid, "reset grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeResetGrantInvalid, "reset grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
