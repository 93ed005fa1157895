package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/twofa/pkg/cryptox"
	"github.com/aussiebroadwan/twofa/pkg/jwtx"
)

// InitSigningKeys loads the session signing key, or generates an ephemeral
// one when no key file is configured, and publishes it in a KeySet.
func InitSigningKeys(cfg Config, logger *slog.Logger) (jwtx.Signer, *jwtx.KeySet, error) {
	var (
		pemKey []byte
		err    error
	)
	if cfg.SigningKeyFile != "" {
		pemKey, err = os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read signing key: %w", err)
		}
		logger.Info("signing key loaded", "kid", cfg.SigningKeyID, "path", cfg.SigningKeyFile)
	} else {
		pemKey, err = cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, nil, fmt.Errorf("generate signing key: %w", err)
		}
		logger.Warn("using ephemeral signing key; sessions end on restart", "kid", cfg.SigningKeyID)
	}

	signer, err := jwtx.NewSignerEdDSA(cfg.SigningKeyID, pemKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create signer: %w", err)
	}
	if err := signer.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate signer: %w", err)
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, nil, fmt.Errorf("publish signing key: %w", err)
	}
	return signer, keys, nil
}
