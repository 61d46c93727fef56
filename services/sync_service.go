package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
	"github.com/keywatch/go-keywatch-client/adapter"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/types"
)

// SyncService performs one request/response round trip per operation against
// the key server, through the configured dialect adapter. Every operation is
// wrapped in the single-retry-on-auth-failure policy: one rejected request
// triggers exactly one reauthentication and one retry, never more.
type SyncService struct {
	client  *resty.Client
	adapter adapter.ServerAdapter
	auth    *AuthService
}

func NewSyncService(adp adapter.ServerAdapter, auth *AuthService, baseURL string, timeout time.Duration, mock bool) *SyncService {
	cl := resty.New().SetBaseURL(baseURL).SetTimeout(timeout)
	cl.SetHeader("User-Agent", "go-keywatch-client/1.0.0")

	if mock {
		httpmock.ActivateNonDefault(cl.GetClient())
	}

	return &SyncService{
		client:  cl,
		adapter: adp,
		auth:    auth,
	}
}

// Fetch retrieves the server's key list since the given watermark. The
// returned digest is the xxhash of the raw response body, used by the
// orchestrator to spot byte-identical responses.
func (s *SyncService) Fetch(ctx context.Context, since *time.Time) (*types.KeyBatch, uint64, error) {
	var batch *types.KeyBatch
	var digest uint64

	err := s.withReauth(ctx, func() error {
		req, bErr := s.adapter.BuildFetchRequest(since)
		if bErr != nil {
			return bErr
		}
		resp, eErr := s.execute(ctx, req)
		if eErr != nil {
			return eErr
		}
		parsed, pErr := s.adapter.ParseFetchResponse(resp.StatusCode(), resp.Header(), resp.Body())
		if pErr != nil {
			return pErr
		}
		batch = parsed
		digest = xxhash.Sum64(resp.Body())
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return batch, digest, nil
}

// Submit uploads the device's own keys, referencing the previous submission
// identifier when one is known.
func (s *SyncService) Submit(ctx context.Context, form []adapter.FormField, keys []types.TemporaryExposureKey, previousID string) (string, error) {
	var identifier string

	err := s.withReauth(ctx, func() error {
		req, bErr := s.adapter.BuildSubmitRequest(form, keys, previousID)
		if bErr != nil {
			return bErr
		}
		resp, eErr := s.execute(ctx, req)
		if eErr != nil {
			return eErr
		}
		id, pErr := s.adapter.ParseSubmitResponse(resp.StatusCode(), resp.Body())
		if pErr != nil {
			return pErr
		}
		identifier = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return identifier, nil
}

// Authenticate performs one auth round trip and persists the new token
func (s *SyncService) Authenticate(ctx context.Context) (*types.AccessToken, error) {
	req, err := s.adapter.BuildAuthRequest(ctx)
	if err != nil {
		return nil, err
	}
	resp, eErr := s.execute(ctx, req)
	if eErr != nil {
		return nil, eErr
	}
	token, pErr := s.adapter.ParseAuthResponse(resp.StatusCode(), resp.Body())
	if pErr != nil {
		return nil, pErr
	}
	if sErr := s.auth.Persist(ctx, token); sErr != nil {
		return nil, sErr
	}
	return token, nil
}

// withReauth runs the operation once; a NotAuthorized (or a missing required
// token) triggers exactly one authentication round trip and one retry. A
// second rejection surfaces as-is, so a persistently misconfigured server
// cannot cause a retry loop.
func (s *SyncService) withReauth(ctx context.Context, op func() error) error {
	err := op()
	if !errors.Is(err, types.ErrNotAuthorized) && !errors.Is(err, types.ErrAuthRequired) {
		return err
	}

	level.Warn(global.Logger).Log("message", "server rejected credentials, reauthenticating", "adapter", s.adapter.Name())
	if iErr := s.auth.Invalidate(ctx); iErr != nil {
		return iErr
	}
	if _, aErr := s.Authenticate(ctx); aErr != nil {
		return aErr
	}
	return op()
}

// execute runs an adapter-built request on the shared resty client
func (s *SyncService) execute(ctx context.Context, req *adapter.Request) (*resty.Response, error) {
	r := s.client.R().SetContext(ctx)

	for name, values := range req.Header {
		for _, v := range values {
			r.Header.Add(name, v)
		}
	}
	if req.Query != nil {
		r.SetQueryParamsFromValues(req.Query)
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}

	token, tErr := s.auth.Current(ctx)
	if tErr != nil {
		return nil, tErr
	}
	if token != nil && token.Expired(time.Now()) {
		// reauthenticate up front instead of burning a rejected request
		token = nil
	}
	if token != nil {
		r.SetAuthToken(token.Value)
	} else if req.RequiresAuth {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, types.ErrAuthRequired)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		// transport errors and timeouts are recoverable on the next cycle
		return nil, fmt.Errorf("%s: %w", err.Error(), types.ErrNetwork)
	}
	return resp, nil
}
