package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/keywatch/go-keywatch-client/types"
)

// streamRecordSize is 16 bytes of key material plus a 4 byte big-endian
// rolling start number. The stream format has no envelope, no deletions and
// no risk ordinals; every record decodes with RiskInvalid.
const streamRecordSize = types.KeySize + 4

// EncodeStream renders keys as a raw concatenation of fixed-width records
func EncodeStream(keys []types.TemporaryExposureKey) ([]byte, error) {
	out := make([]byte, 0, len(keys)*streamRecordSize)
	for _, k := range keys {
		if len(k.KeyData) != types.KeySize {
			return nil, fmt.Errorf("key material must be %d bytes, got %d: %w", types.KeySize, len(k.KeyData), types.ErrDecode)
		}
		out = append(out, k.KeyData...)
		out = binary.BigEndian.AppendUint32(out, k.RollingStartNumber)
	}
	return out, nil
}

// DecodeStream parses a raw fixed-width record stream
func DecodeStream(body []byte) ([]types.TemporaryExposureKey, error) {
	if len(body)%streamRecordSize != 0 {
		return nil, fmt.Errorf("stream length %d not a multiple of %d: %w", len(body), streamRecordSize, types.ErrDecode)
	}
	keys := make([]types.TemporaryExposureKey, 0, len(body)/streamRecordSize)
	for off := 0; off < len(body); off += streamRecordSize {
		keyData := make([]byte, types.KeySize)
		copy(keyData, body[off:off+types.KeySize])
		keys = append(keys, types.TemporaryExposureKey{
			KeyData:            keyData,
			RollingStartNumber: binary.BigEndian.Uint32(body[off+types.KeySize : off+streamRecordSize]),
			TransmissionRisk:   types.RiskInvalid,
		})
	}
	return keys, nil
}
