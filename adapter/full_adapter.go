package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/keywatch/go-keywatch-client/codec"
	"github.com/keywatch/go-keywatch-client/types"
)

// FullAdapter speaks the full-featured dialect: authenticated endpoints,
// JSON or CBOR fetch bodies negotiated by content type, list-type and
// retry-date metadata, and resubmission by identifier.
type FullAdapter struct {
	cfg         Config
	credentials CredentialSource
}

func NewFullAdapter(cfg Config, credentials CredentialSource) *FullAdapter {
	if cfg.AuthPath == "" {
		cfg.AuthPath = "/api/v1/auth"
	}
	if cfg.KeysPath == "" {
		cfg.KeysPath = "/api/v1/diagnosis-keys"
	}
	if cfg.SubmitPath == "" {
		cfg.SubmitPath = "/api/v1/diagnosis-keys"
	}
	return &FullAdapter{cfg: cfg, credentials: credentials}
}

func (a *FullAdapter) Name() string {
	return "full"
}

func (a *FullAdapter) BuildAuthRequest(ctx context.Context) (*Request, error) {
	if a.credentials == nil {
		return nil, fmt.Errorf("no credential source configured: %w", types.ErrInvalidConfig)
	}
	payload, err := a.credentials.BuildAuthPayload(ctx)
	if err != nil {
		return nil, err
	}
	body, mErr := json.Marshal(payload)
	if mErr != nil {
		return nil, mErr
	}
	header := http.Header{}
	header.Set("Content-Type", codec.ContentTypeJSON)
	return &Request{
		Method: http.MethodPost,
		Path:   a.cfg.AuthPath,
		Header: header,
		Body:   body,
	}, nil
}

type authResponse struct {
	Status    string `json:"status"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func (a *FullAdapter) ParseAuthResponse(status int, body []byte) (*types.AccessToken, error) {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, types.ErrNotAuthorized
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), types.ErrDecode)
	}
	if resp.Status != codec.StatusOK {
		return nil, fmt.Errorf("auth status %q: %w", resp.Status, types.ErrStatusNotOK)
	}
	token := &types.AccessToken{Value: resp.Token}
	if resp.ExpiresAt != "" {
		expires, tErr := time.Parse(time.RFC3339, resp.ExpiresAt)
		if tErr != nil {
			return nil, fmt.Errorf("unparseable expires_at %q: %w", resp.ExpiresAt, types.ErrDecode)
		}
		token.ExpiresAt = &expires
	}
	return token, nil
}

func (a *FullAdapter) BuildFetchRequest(since *time.Time) (*Request, error) {
	query := url.Values{}
	if since != nil {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	header := http.Header{}
	if a.cfg.PreferBinary {
		// the server decides; this is only a preference
		header.Set("Accept", codec.ContentTypeCBOR+", "+codec.ContentTypeJSON)
	} else {
		header.Set("Accept", codec.ContentTypeJSON)
	}
	return &Request{
		Method:       http.MethodGet,
		Path:         a.cfg.KeysPath,
		Query:        query,
		Header:       header,
		RequiresAuth: true,
	}, nil
}

func (a *FullAdapter) ParseFetchResponse(status int, header http.Header, body []byte) (*types.KeyBatch, error) {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, types.ErrNotAuthorized
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch returned %d: %w", status, types.ErrNetwork)
	}
	declared, _, mErr := mime.ParseMediaType(header.Get("Content-Type"))
	if mErr != nil {
		return nil, fmt.Errorf("content type %q: %w", header.Get("Content-Type"), types.ErrUnrecognizedContentType)
	}
	// decoding follows the declared type, never a client-side guess
	return codec.Decode(declared, body)
}

type submitRequest struct {
	Keys       []submitKey `json:"keys"`
	Form       []FormField `json:"form"`
	Identifier string      `json:"identifier,omitempty"`
}

type submitKey struct {
	D []byte `json:"d"`
	R int64  `json:"r"`
	L int64  `json:"l"`
}

type submitResponse struct {
	Status     string `json:"status"`
	Identifier string `json:"identifier,omitempty"`
}

func (a *FullAdapter) BuildSubmitRequest(form []FormField, keys []types.TemporaryExposureKey, previousID string) (*Request, error) {
	payload := submitRequest{
		Form:       form,
		Identifier: previousID,
		Keys:       make([]submitKey, 0, len(keys)),
	}
	for _, k := range keys {
		payload.Keys = append(payload.Keys, submitKey{D: k.KeyData, R: int64(k.RollingStartNumber), L: int64(k.TransmissionRisk)})
	}
	body, err := json.Marshal(&payload)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Content-Type", codec.ContentTypeJSON)
	return &Request{
		Method:       http.MethodPost,
		Path:         a.cfg.SubmitPath,
		Header:       header,
		Body:         body,
		RequiresAuth: true,
	}, nil
}

func (a *FullAdapter) ParseSubmitResponse(status int, body []byte) (string, error) {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", types.ErrNotAuthorized
	}
	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", err.Error(), types.ErrDecode)
	}
	if resp.Status != codec.StatusOK {
		return "", fmt.Errorf("submit status %q: %w", resp.Status, types.ErrStatusNotOK)
	}
	return resp.Identifier, nil
}
