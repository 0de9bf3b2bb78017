package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// ConfigHash returns the blake3 hex digest of the key-sorted serialization of
// the initial state with an empty hash field.
func ConfigHash(tick int, status Status) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"tick":       tick,
		"status":     string(status),
		"configHash": "",
	})
	if err != nil {
		return "", fmt.Errorf("state: encode hash payload: %w", err)
	}
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
