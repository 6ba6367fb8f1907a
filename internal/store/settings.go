package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const sessionSecretSetting = "session_secret"

// GetSessionSecret returns the session signing secret stored in settings,
// generating and storing one on first use. The insert never overwrites, so
// concurrent first starts agree on a single value.
func GetSessionSecret(ctx context.Context, q sqlx.ExtContext) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}

	_, err := exec(ctx, q,
		`INSERT INTO settings (name, value) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		sessionSecretSetting, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing session secret: %w", err)
	}

	var secret string
	if _, err := getOne(ctx, q, &secret, `SELECT value FROM settings WHERE name = ?`, sessionSecretSetting); err != nil {
		return "", fmt.Errorf("querying session secret: %w", err)
	}
	return secret, nil
}
