package codec

import (
	"testing"
	"time"

	"github.com/keywatch/go-keywatch-client/types"
	"github.com/stretchr/testify/assert"
)

func testBatch() *types.KeyBatch {
	retry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &types.KeyBatch{
		Status:       StatusOK,
		Date:         time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC),
		List:         types.ListTypeFull,
		MinRetryDate: &retry,
		Keys: []types.TemporaryExposureKey{
			{KeyData: []byte("0123456789abcdef"), RollingStartNumber: 2650032, TransmissionRisk: types.TransmissionRisk(3)},
			{KeyData: []byte("fedcba9876543210"), RollingStartNumber: 2650176, TransmissionRisk: types.RiskHighest},
		},
		DeletedKeys: []types.TemporaryExposureKey{
			{KeyData: []byte("deadbeefdeadbeef"), RollingStartNumber: 2649888, TransmissionRisk: types.RiskLowest},
		},
	}
}

func TestJSONRoundtrip(t *testing.T) {
	src := testBatch()
	body, err := EncodeJSON(src)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, StatusOK, got.Status)
	assert.Equal(t, types.ListTypeFull, got.List)
	assert.True(t, src.Date.Equal(got.Date))
	if assert.NotNil(t, got.MinRetryDate) {
		assert.True(t, src.MinRetryDate.Equal(*got.MinRetryDate))
	}
	assert.Len(t, got.Keys, 2)
	assert.True(t, got.Keys[0].Equal(src.Keys[0]))
	assert.Equal(t, uint32(2650032), got.Keys[0].RollingStartNumber)
	assert.Len(t, got.DeletedKeys, 1)
}

func TestCBORRoundtrip(t *testing.T) {
	src := testBatch()
	body, err := EncodeCBOR(src)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeCBOR(body)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, StatusOK, got.Status)
	assert.Equal(t, types.ListTypeFull, got.List)
	assert.Len(t, got.Keys, 2)
	assert.Equal(t, types.RiskHighest, got.Keys[1].TransmissionRisk)
}

func TestDecodeMissingStatus(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"date":"2026-02-28T09:30:00Z","keys":[]}`))
	assert.ErrorIs(t, err, types.ErrDecode)
}

func TestDecodeBadDate(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"status":"OK","date":"yesterday","keys":[]}`))
	assert.ErrorIs(t, err, types.ErrDecode)
}

func TestDecodeBadRetryDate(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"status":"OK","date":"2026-02-28T09:30:00Z","min_retry_date":"soon","keys":[]}`))
	assert.ErrorIs(t, err, types.ErrDecode)
}

func TestDecodeRollingStartOutOfRange(t *testing.T) {
	body := []byte(`{"status":"OK","date":"2026-02-28T09:30:00Z","keys":[{"d":"MDEyMzQ1Njc4OWFiY2RlZg==","r":4294967296,"l":2}]}`)
	_, err := DecodeJSON(body)
	assert.ErrorIs(t, err, types.ErrDecode)

	body = []byte(`{"status":"OK","date":"2026-02-28T09:30:00Z","keys":[{"d":"MDEyMzQ1Njc4OWFiY2RlZg==","r":-1,"l":2}]}`)
	_, err = DecodeJSON(body)
	assert.ErrorIs(t, err, types.ErrDecode)
}

func TestDecodeUnknownRiskKeptAsInvalid(t *testing.T) {
	body := []byte(`{"status":"OK","date":"2026-02-28T09:30:00Z","keys":[{"d":"MDEyMzQ1Njc4OWFiY2RlZg==","r":2650032,"l":42}]}`)
	got, err := DecodeJSON(body)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, got.Keys, 1)
	assert.Equal(t, types.RiskInvalid, got.Keys[0].TransmissionRisk)
}

func TestDecodeDefaultsToPartialList(t *testing.T) {
	got, err := DecodeJSON([]byte(`{"status":"OK","date":"2026-02-28T09:30:00Z","keys":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, types.ListTypePartial, got.List)
	assert.Nil(t, got.MinRetryDate)
}

func TestDecodeDispatchByContentType(t *testing.T) {
	body, _ := EncodeJSON(testBatch())
	got, err := Decode(ContentTypeJSON, body)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, StatusOK, got.Status)

	body, _ = EncodeCBOR(testBatch())
	got, err = Decode(ContentTypeCBOR, body)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, StatusOK, got.Status)

	_, err = Decode("text/html", []byte("<html></html>"))
	assert.ErrorIs(t, err, types.ErrUnrecognizedContentType)
}
