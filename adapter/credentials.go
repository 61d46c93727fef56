package adapter

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/keywatch/go-keywatch-client/types"
)

// ReceiptCredentialSource proves the device's standing with a purchase
// receipt read from disk, the shape {"receipt": <string>} expected by the
// full dialect's auth endpoint.
type ReceiptCredentialSource struct {
	Path string
}

func NewReceiptCredentialSource(path string) *ReceiptCredentialSource {
	return &ReceiptCredentialSource{Path: path}
}

func (r *ReceiptCredentialSource) BuildAuthPayload(ctx context.Context) (map[string]interface{}, error) {
	if r.Path == "" {
		return nil, fmt.Errorf("receipt path not configured: %w", types.ErrInvalidConfig)
	}
	content, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt %s: %w", r.Path, err)
	}
	return map[string]interface{}{
		"receipt": strings.TrimSpace(string(content)),
	}, nil
}

// StaticCredentialSource carries a pre-obtained attestation token, the shape
// {"token": <attestation>}.
type StaticCredentialSource struct {
	Token string
}

func (s *StaticCredentialSource) BuildAuthPayload(ctx context.Context) (map[string]interface{}, error) {
	if s.Token == "" {
		return nil, fmt.Errorf("attestation token not configured: %w", types.ErrInvalidConfig)
	}
	return map[string]interface{}{
		"token": s.Token,
	}, nil
}
