package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keywatch/go-keywatch-client/api/interceptors"
	"github.com/keywatch/go-keywatch-client/codec"
	"github.com/keywatch/go-keywatch-client/repository"
	"github.com/keywatch/go-keywatch-client/state"
	"github.com/keywatch/go-keywatch-client/types"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(t *testing.T) (*gin.Engine, *repository.KeyStore, *TokenRegistry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keys := repository.NewKeyStore(repository.NewMemoryRepository(repository.ServerKeys))
	registry := NewTokenRegistry(state.NewMemoryStore())
	keysApi := NewDiagnosisKeysApi(keys)
	authApi := NewAuthApi(registry)

	router := gin.New()
	router.POST("/api/v1/auth", authApi.Authenticate)
	authorized := router.Group("/api/v1", interceptors.BearerAuthMiddleware(registry))
	authorized.GET("/diagnosis-keys", keysApi.ListKeys)
	authorized.POST("/diagnosis-keys", keysApi.SubmitKeys)
	return router, keys, registry
}

func issueToken(t *testing.T, registry *TokenRegistry) string {
	t.Helper()
	token, _, err := registry.Issue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func seedKeys(t *testing.T, keys *repository.KeyStore, materials ...string) {
	t.Helper()
	for _, m := range materials {
		_, err := keys.InsertIfAbsent(context.Background(), types.TemporaryExposureKey{
			KeyData:            []byte(m),
			RollingStartNumber: 2650032,
			TransmissionRisk:   types.TransmissionRisk(2),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestAuthIssuesToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest("POST", "/api/v1/auth", bytes.NewBufferString(`{"receipt":"proof"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "OK", resp["status"])
	assert.NotEmpty(t, resp["token"])
	if _, err := time.Parse(time.RFC3339, resp["expires_at"]); err != nil {
		t.Fatalf("unparseable expires_at: %v", err)
	}
}

func TestAuthRejectsEmptyProof(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest("POST", "/api/v1/auth", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListKeysRequiresBearer(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/api/v1/diagnosis-keys", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/diagnosis-keys", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListKeysJSON(t *testing.T) {
	router, keys, registry := newTestRouter(t)
	seedKeys(t, keys, "aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb")
	token := issueToken(t, registry)

	req := httptest.NewRequest("GET", "/api/v1/diagnosis-keys", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), codec.ContentTypeJSON)

	batch, err := codec.DecodeJSON(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, types.ListTypeFull, batch.List)
	assert.Len(t, batch.Keys, 2)
}

func TestListKeysCBORByAccept(t *testing.T) {
	router, keys, registry := newTestRouter(t)
	seedKeys(t, keys, "aaaaaaaaaaaaaaaa")
	token := issueToken(t, registry)

	req := httptest.NewRequest("GET", "/api/v1/diagnosis-keys", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", codec.ContentTypeCBOR)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), codec.ContentTypeCBOR)

	batch, err := codec.DecodeCBOR(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, batch.Keys, 1)
}

func TestListKeysSinceNarrowsToPartial(t *testing.T) {
	router, keys, registry := newTestRouter(t)
	seedKeys(t, keys, "aaaaaaaaaaaaaaaa")
	token := issueToken(t, registry)

	// everything in the store predates this cutoff
	since := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest("GET", "/api/v1/diagnosis-keys?since="+since, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	batch, err := codec.DecodeJSON(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, types.ListTypePartial, batch.List)
	assert.Empty(t, batch.Keys)
}

func TestListKeysSinceOnEmptyStoreStaysPartial(t *testing.T) {
	router, _, registry := newTestRouter(t)
	token := issueToken(t, registry)

	since := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest("GET", "/api/v1/diagnosis-keys?since="+since, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	batch, err := codec.DecodeJSON(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	// an empty delta must not look like a full-list replace
	assert.Equal(t, types.ListTypePartial, batch.List)
	assert.Empty(t, batch.Keys)
}

func TestSubmitKeys(t *testing.T) {
	router, keys, registry := newTestRouter(t)
	token := issueToken(t, registry)

	body := `{"keys":[{"d":"MDEyMzQ1Njc4OWFiY2RlZg==","r":2650032,"l":3}],"identifier":"sub-1"}`
	req := httptest.NewRequest("POST", "/api/v1/diagnosis-keys", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "sub-1", resp["identifier"])

	held, err := keys.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, held, 1)
}

func TestSubmitKeysRejectsBadRollingStart(t *testing.T) {
	router, _, registry := newTestRouter(t)
	token := issueToken(t, registry)

	body := `{"keys":[{"d":"MDEyMzQ1Njc4OWFiY2RlZg==","r":4294967296,"l":3}]}`
	req := httptest.NewRequest("POST", "/api/v1/diagnosis-keys", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
