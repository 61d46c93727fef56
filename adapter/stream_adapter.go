package adapter

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/keywatch/go-keywatch-client/codec"
	"github.com/keywatch/go-keywatch-client/types"
)

// StreamAdapter speaks the minimal dialect used by simpler third-party
// servers: a fixed-width binary record stream, no authentication, no
// deletions, always full-list semantics.
type StreamAdapter struct {
	cfg Config
	now func() time.Time
}

func NewStreamAdapter(cfg Config) *StreamAdapter {
	if cfg.KeysPath == "" {
		cfg.KeysPath = "/keys"
	}
	return &StreamAdapter{cfg: cfg, now: time.Now}
}

func (a *StreamAdapter) Name() string {
	return "stream"
}

func (a *StreamAdapter) BuildAuthRequest(ctx context.Context) (*Request, error) {
	return nil, types.ErrNotSupported
}

func (a *StreamAdapter) ParseAuthResponse(status int, body []byte) (*types.AccessToken, error) {
	return nil, types.ErrNotSupported
}

func (a *StreamAdapter) BuildFetchRequest(since *time.Time) (*Request, error) {
	// the stream has no envelope and no delta support, so since is ignored
	header := http.Header{}
	header.Set("Accept", codec.ContentTypeStream)
	return &Request{
		Method: http.MethodGet,
		Path:   a.cfg.KeysPath,
		Header: header,
	}, nil
}

func (a *StreamAdapter) ParseFetchResponse(status int, header http.Header, body []byte) (*types.KeyBatch, error) {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, types.ErrNotAuthorized
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch returned %d: %w", status, types.ErrNetwork)
	}
	// decoding follows the declared type, never a client-side guess
	declaredType := header.Get("Content-Type")
	if declaredType == "" {
		return nil, fmt.Errorf("missing content type: %w", types.ErrUnrecognizedContentType)
	}
	declared, _, mErr := mime.ParseMediaType(declaredType)
	if mErr != nil || declared != codec.ContentTypeStream {
		return nil, fmt.Errorf("content type %q: %w", declaredType, types.ErrUnrecognizedContentType)
	}
	keys, err := codec.DecodeStream(body)
	if err != nil {
		return nil, err
	}
	// no server date in the stream; the time of receipt stands in for it
	return &types.KeyBatch{
		Status: codec.StatusOK,
		Date:   a.now().UTC(),
		List:   types.ListTypeFull,
		Keys:   keys,
	}, nil
}

func (a *StreamAdapter) BuildSubmitRequest(form []FormField, keys []types.TemporaryExposureKey, previousID string) (*Request, error) {
	return nil, types.ErrNotSupported
}

func (a *StreamAdapter) ParseSubmitResponse(status int, body []byte) (string, error) {
	return "", types.ErrNotSupported
}
