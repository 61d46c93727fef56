// Package adapter builds outbound requests for a key server and parses its
// responses into typed results. Backends differ enough that each dialect is
// a separate implementation of the ServerAdapter interface, selected by
// configuration.
package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/keywatch/go-keywatch-client/types"
)

// Request is an outbound request description, transport-agnostic so the sync
// client can execute it with whatever HTTP stack it holds.
type Request struct {
	Method       string
	Path         string
	Query        url.Values
	Header       http.Header
	Body         []byte
	RequiresAuth bool
}

// FormField is one entry of the submit payload's form section
type FormField struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Str  string `json:"str"`
}

// ServerAdapter is implemented once per backend dialect
type ServerAdapter interface {
	Name() string

	// BuildAuthRequest constructs the authentication round trip, or returns
	// ErrNotSupported for dialects without authentication.
	BuildAuthRequest(ctx context.Context) (*Request, error)
	ParseAuthResponse(status int, body []byte) (*types.AccessToken, error)

	// BuildFetchRequest appends a since parameter when a watermark is
	// supplied and advertises the dialect's preferred content types.
	BuildFetchRequest(since *time.Time) (*Request, error)
	ParseFetchResponse(status int, header http.Header, body []byte) (*types.KeyBatch, error)

	BuildSubmitRequest(form []FormField, keys []types.TemporaryExposureKey, previousID string) (*Request, error)
	ParseSubmitResponse(status int, body []byte) (string, error)
}

// CredentialSource supplies the proof material for the auth payload,
// e.g. a platform attestation token or a purchase receipt.
type CredentialSource interface {
	BuildAuthPayload(ctx context.Context) (map[string]interface{}, error)
}

// Config carries the dialect-independent endpoint settings
type Config struct {
	AuthPath     string
	KeysPath     string
	SubmitPath   string
	PreferBinary bool
}

// New selects a dialect by name
func New(dialect string, cfg Config, credentials CredentialSource) (ServerAdapter, error) {
	switch dialect {
	case "full":
		return NewFullAdapter(cfg, credentials), nil
	case "stream":
		return NewStreamAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q: %w", dialect, types.ErrInvalidConfig)
	}
}
