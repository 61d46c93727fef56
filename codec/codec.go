// Package codec translates between the key server's wire formats and the
// internal KeyBatch type. Three formats exist: structured JSON, a compact
// CBOR encoding of the same fields, and a raw fixed-width record stream used
// by minimal third-party servers.
package codec

import (
	"fmt"
	"math"
	"time"

	"github.com/keywatch/go-keywatch-client/types"
)

const (
	ContentTypeJSON   = "application/json"
	ContentTypeCBOR   = "application/cbor"
	ContentTypeStream = "application/octet-stream"
)

const StatusOK = "OK"

// wireKey is the compact per-key record shared by the JSON and CBOR formats
type wireKey struct {
	D []byte `json:"d" cbor:"d"`
	R int64  `json:"r" cbor:"r"`
	L int64  `json:"l" cbor:"l"`
}

// wireBatch is the envelope shared by the JSON and CBOR formats
type wireBatch struct {
	Status       string    `json:"status" cbor:"status"`
	Date         string    `json:"date" cbor:"date"`
	ListType     string    `json:"list_type,omitempty" cbor:"list_type,omitempty"`
	MinRetryDate string    `json:"min_retry_date,omitempty" cbor:"min_retry_date,omitempty"`
	Keys         []wireKey `json:"keys" cbor:"keys"`
	DeletedKeys  []wireKey `json:"deleted_keys,omitempty" cbor:"deleted_keys,omitempty"`
}

func toWire(batch *types.KeyBatch) *wireBatch {
	w := &wireBatch{
		Status:      batch.Status,
		Date:        batch.Date.UTC().Format(time.RFC3339),
		Keys:        toWireKeys(batch.Keys),
		DeletedKeys: toWireKeys(batch.DeletedKeys),
	}
	if batch.List == types.ListTypeFull {
		w.ListType = string(types.ListTypeFull)
	}
	if batch.MinRetryDate != nil {
		w.MinRetryDate = batch.MinRetryDate.UTC().Format(time.RFC3339)
	}
	return w
}

func toWireKeys(keys []types.TemporaryExposureKey) []wireKey {
	out := make([]wireKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, wireKey{D: k.KeyData, R: int64(k.RollingStartNumber), L: int64(k.TransmissionRisk)})
	}
	return out
}

// fromWire validates a decoded envelope and converts it into a KeyBatch.
// A missing status or an unparseable date fails the whole batch; an
// unrecognized risk ordinal only degrades the single record to RiskInvalid.
func fromWire(w *wireBatch) (*types.KeyBatch, error) {
	if w.Status == "" {
		return nil, fmt.Errorf("missing status field: %w", types.ErrDecode)
	}
	date, err := time.Parse(time.RFC3339, w.Date)
	if err != nil {
		return nil, fmt.Errorf("unparseable date %q: %w", w.Date, types.ErrDecode)
	}
	batch := &types.KeyBatch{
		Status: w.Status,
		Date:   date,
		List:   types.ListTypePartial,
	}
	if w.ListType == string(types.ListTypeFull) {
		batch.List = types.ListTypeFull
	}
	if w.MinRetryDate != "" {
		retry, rErr := time.Parse(time.RFC3339, w.MinRetryDate)
		if rErr != nil {
			return nil, fmt.Errorf("unparseable min_retry_date %q: %w", w.MinRetryDate, types.ErrDecode)
		}
		batch.MinRetryDate = &retry
	}
	if batch.Keys, err = fromWireKeys(w.Keys); err != nil {
		return nil, err
	}
	if batch.DeletedKeys, err = fromWireKeys(w.DeletedKeys); err != nil {
		return nil, err
	}
	return batch, nil
}

func fromWireKeys(keys []wireKey) ([]types.TemporaryExposureKey, error) {
	out := make([]types.TemporaryExposureKey, 0, len(keys))
	for _, wk := range keys {
		if wk.R < 0 || wk.R > math.MaxUint32 {
			return nil, fmt.Errorf("rolling start number %d out of range: %w", wk.R, types.ErrDecode)
		}
		out = append(out, types.TemporaryExposureKey{
			KeyData:            wk.D,
			RollingStartNumber: uint32(wk.R),
			TransmissionRisk:   types.RiskFromOrdinal(wk.L),
		})
	}
	return out, nil
}

// Decode selects the decoder matching the declared content type. The caller
// (the server adapter) is responsible for rejecting unknown content types
// before guessing; this returns ErrUnrecognizedContentType as a backstop.
func Decode(contentType string, body []byte) (*types.KeyBatch, error) {
	switch contentType {
	case ContentTypeJSON:
		return DecodeJSON(body)
	case ContentTypeCBOR:
		return DecodeCBOR(body)
	default:
		return nil, fmt.Errorf("content type %q: %w", contentType, types.ErrUnrecognizedContentType)
	}
}
