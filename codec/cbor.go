package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/keywatch/go-keywatch-client/types"
)

// EncodeCBOR renders a batch in the compact binary wire format
func EncodeCBOR(batch *types.KeyBatch) ([]byte, error) {
	return cbor.Marshal(toWire(batch))
}

// DecodeCBOR parses the compact binary wire format
func DecodeCBOR(body []byte) (*types.KeyBatch, error) {
	var w wireBatch
	if err := cbor.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), types.ErrDecode)
	}
	return fromWire(&w)
}
