package protocol

import (
	"encoding/json"
	"fmt"

	"boardsync/pkg/types"
)

// EncodeBatch serializes an action batch to its wire form, a JSON array.
// Even a single action travels as a batch so related changes apply
// atomically at the receiving end.
func EncodeBatch(actions []types.StateAction) ([]byte, error) {
	return json.Marshal(actions)
}

// DecodeBatch parses a client frame into an action batch. Malformed frames
// and structurally invalid actions are rejected; the caller discards the
// frame and keeps the connection open.
func DecodeBatch(data []byte) ([]types.StateAction, error) {
	var actions []types.StateAction
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if len(actions) == 0 {
		return nil, ErrEmptyBatch
	}
	for i, a := range actions {
		if err := types.ValidateAction(a); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return actions, nil
}

// DecodeEnvelopes parses a server frame into its envelope list.
func DecodeEnvelopes(data []byte) ([]types.Envelope, error) {
	var envs []types.Envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return envs, nil
}
