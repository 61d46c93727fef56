package adapter

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/keywatch/go-keywatch-client/codec"
	"github.com/keywatch/go-keywatch-client/types"
	"github.com/stretchr/testify/assert"
)

func TestStreamUnsupportedOperations(t *testing.T) {
	adp := NewStreamAdapter(Config{})

	_, err := adp.BuildAuthRequest(context.Background())
	assert.ErrorIs(t, err, types.ErrNotSupported)

	_, err = adp.ParseAuthResponse(200, nil)
	assert.ErrorIs(t, err, types.ErrNotSupported)

	_, err = adp.BuildSubmitRequest(nil, nil, "")
	assert.ErrorIs(t, err, types.ErrNotSupported)

	_, err = adp.ParseSubmitResponse(200, nil)
	assert.ErrorIs(t, err, types.ErrNotSupported)
}

func TestStreamBuildFetchRequestIgnoresSince(t *testing.T) {
	adp := NewStreamAdapter(Config{})
	since := time.Now()
	req, err := adp.BuildFetchRequest(&since)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "/keys", req.Path)
	assert.Empty(t, req.Query)
	assert.False(t, req.RequiresAuth)
	assert.Equal(t, codec.ContentTypeStream, req.Header.Get("Accept"))
}

func TestStreamParseFetchResponse(t *testing.T) {
	adp := NewStreamAdapter(Config{})
	fixed := time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC)
	adp.now = func() time.Time { return fixed }

	body, err := codec.EncodeStream([]types.TemporaryExposureKey{
		{KeyData: []byte("0123456789abcdef"), RollingStartNumber: 2650032},
		{KeyData: []byte("fedcba9876543210"), RollingStartNumber: 2650176},
	})
	if err != nil {
		t.Fatal(err)
	}
	header := http.Header{}
	header.Set("Content-Type", codec.ContentTypeStream)

	batch, err := adp.ParseFetchResponse(200, header, body)
	if err != nil {
		t.Fatal(err)
	}
	// the stream always replaces the whole local set
	assert.Equal(t, types.ListTypeFull, batch.List)
	assert.True(t, fixed.Equal(batch.Date))
	assert.Len(t, batch.Keys, 2)
	assert.Empty(t, batch.DeletedKeys)
	assert.Nil(t, batch.MinRetryDate)
}

func TestStreamParseFetchResponseRequiresContentType(t *testing.T) {
	adp := NewStreamAdapter(Config{})
	_, err := adp.ParseFetchResponse(200, http.Header{}, nil)
	assert.ErrorIs(t, err, types.ErrUnrecognizedContentType)
}

func TestStreamParseFetchResponseWrongContentType(t *testing.T) {
	adp := NewStreamAdapter(Config{})
	header := http.Header{}
	header.Set("Content-Type", codec.ContentTypeJSON)
	_, err := adp.ParseFetchResponse(200, header, []byte(`{}`))
	assert.ErrorIs(t, err, types.ErrUnrecognizedContentType)
}
