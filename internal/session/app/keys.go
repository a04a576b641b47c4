package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/sessiond/internal/session/token"
	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
)

// LoadKeys decodes the three configured RSA pairs. Any malformed pair, or a
// public key that does not match its private key, is fatal.
//
// Reauth tokens are signed with the access pair; the knd claim keeps the two
// kinds apart.
func LoadKeys(cfg Config, logger *slog.Logger) (token.Keys, error) {
	access, err := loadPair("ACCESS_TOKEN", cfg.AccessKey)
	if err != nil {
		return token.Keys{}, err
	}
	refresh, err := loadPair("REFRESH_TOKEN", cfg.RefreshKey)
	if err != nil {
		return token.Keys{}, err
	}
	session, err := loadPair("SESSION_TOKEN", cfg.SessionKey)
	if err != nil {
		return token.Keys{}, err
	}

	if access.KID() == refresh.KID() || access.KID() == session.KID() || refresh.KID() == session.KID() {
		logger.Warn("token kinds share a key pair; use distinct pairs per kind")
	}

	logger.Info("signing keys loaded",
		"access_kid", access.KID(),
		"refresh_kid", refresh.KID(),
		"session_kid", session.KID(),
	)

	return token.Keys{Access: access, Refresh: refresh, Session: session}, nil
}

func loadPair(name string, k KeyConfig) (*jwtx.KeyPair, error) {
	kp, err := jwtx.DecodeKeyPair(k.PrivateKey, k.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%s key pair: %w", name, err)
	}
	return kp, nil
}
