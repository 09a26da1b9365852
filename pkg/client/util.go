package client

import (
	"encoding/json"
	"fmt"
)

func unmarshalData(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode envelope data: %w", err)
	}
	return nil
}
