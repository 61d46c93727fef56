package types

import (
	"bytes"
	"encoding/base64"
	"time"

	"github.com/cespare/xxhash/v2"
)

// KeySize is the length in bytes of a temporary exposure key
const KeySize = 16

// TransmissionRisk is the per-key risk ordinal reported by the server.
// Valid ordinals are 0 through 8; anything else maps to RiskInvalid.
type TransmissionRisk uint8

const (
	RiskLowest  TransmissionRisk = 0
	RiskHighest TransmissionRisk = 8

	// RiskInvalid marks a key whose reported ordinal was not recognized.
	// Such keys are kept, not dropped, so one bad record cannot void a batch.
	RiskInvalid TransmissionRisk = 255
)

// RiskFromOrdinal maps a wire ordinal to a TransmissionRisk
func RiskFromOrdinal(v int64) TransmissionRisk {
	if v < int64(RiskLowest) || v > int64(RiskHighest) {
		return RiskInvalid
	}
	return TransmissionRisk(v)
}

// TemporaryExposureKey is a single anonymized diagnosis key.
// It is an immutable value; equality is by KeyData.
type TemporaryExposureKey struct {
	KeyData            []byte           `json:"keyData"`
	RollingStartNumber uint32           `json:"rollingStartNumber"` // 10-minute interval index since epoch
	TransmissionRisk   TransmissionRisk `json:"transmissionRisk"`
}

// Equal reports whether both keys carry the same key material
func (k TemporaryExposureKey) Equal(other TemporaryExposureKey) bool {
	return bytes.Equal(k.KeyData, other.KeyData)
}

// ID returns the store document ID for this key (url-safe base64 of the key material)
func (k TemporaryExposureKey) ID() string {
	return base64.RawURLEncoding.EncodeToString(k.KeyData)
}

// Fingerprint is a fast 64-bit digest of the key material, used in logs and metrics
func (k TemporaryExposureKey) Fingerprint() uint64 {
	return xxhash.Sum64(k.KeyData)
}

// RemoteKeyRecord is a TemporaryExposureKey with local provenance. Created on
// first sight of a given key, never updated, deleted only when the server
// revokes the key.
type RemoteKeyRecord struct {
	Key        TemporaryExposureKey `json:"key"`
	ReceivedAt time.Time            `json:"receivedAt"`
}
