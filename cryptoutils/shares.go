package cryptoutils

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hashicorp/vault/shamir"
)

// SplitPassphrase splits a sealing passphrase into parts Shamir shares, any
// threshold of which recover it. Shares are base64 encoded.
func SplitPassphrase(passphrase string, parts, threshold int) ([]string, error) {
	if passphrase == "" {
		return nil, errors.New("empty sealing passphrase")
	}

	raw, err := shamir.Split([]byte(passphrase), parts, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split passphrase: %w", err)
	}

	shares := make([]string, len(raw))
	for i, share := range raw {
		shares[i] = base64.StdEncoding.EncodeToString(share)
	}
	return shares, nil
}

// CombinePassphrase recovers a passphrase from base64 encoded shares. Fewer
// shares than the split threshold yield a wrong passphrase rather than an
// error, which surfaces when the first sealed credential fails to open.
func CombinePassphrase(shares []string) (string, error) {
	raw := make([][]byte, 0, len(shares))
	for i, share := range shares {
		decoded, err := base64.StdEncoding.DecodeString(share)
		if err != nil {
			return "", fmt.Errorf("invalid share %d: %w", i, err)
		}
		raw = append(raw, decoded)
	}

	passphrase, err := shamir.Combine(raw)
	if err != nil {
		return "", fmt.Errorf("failed to combine passphrase shares: %w", err)
	}
	return string(passphrase), nil
}
