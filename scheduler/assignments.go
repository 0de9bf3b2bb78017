package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/tidwall/jsonc"
)

// LoadAssignments reads the explicit routing table {agent_id: text}. The file
// may carry // and /* */ comments and trailing commas. A missing file yields
// no assignments. Empty entries are dropped.
func LoadAssignments(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scheduler: read assignments: %w", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, fmt.Errorf("scheduler: decode assignments %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for id, text := range raw {
		if text != "" {
			out[id] = text
		}
	}
	return out, nil
}
