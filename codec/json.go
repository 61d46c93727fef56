package codec

import (
	"encoding/json"
	"fmt"

	"github.com/keywatch/go-keywatch-client/types"
)

// EncodeJSON renders a batch in the structured JSON wire format
func EncodeJSON(batch *types.KeyBatch) ([]byte, error) {
	return json.Marshal(toWire(batch))
}

// DecodeJSON parses the structured JSON wire format
func DecodeJSON(body []byte) (*types.KeyBatch, error) {
	var w wireBatch
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), types.ErrDecode)
	}
	return fromWire(&w)
}
