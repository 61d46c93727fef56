package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/keywatch/go-keywatch-client/codec"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/repository"
	"github.com/keywatch/go-keywatch-client/types"
)

// DiagnosisKeysApi is the reference server's key table: authenticated
// insert and select backed by the entity store. Thin glue around the same
// wire formats the client consumes.
type DiagnosisKeysApi struct {
	keys *repository.KeyStore
}

func NewDiagnosisKeysApi(keys *repository.KeyStore) *DiagnosisKeysApi {
	return &DiagnosisKeysApi{keys: keys}
}

// ListKeys serves the key list as JSON or CBOR, whichever the Accept header
// asks for. A since parameter narrows the response to an incremental list.
func (ka *DiagnosisKeysApi) ListKeys(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ApiErrorf(c, http.StatusBadRequest, "unparseable since parameter")
			return
		}
		since = &parsed
	}

	records, err := ka.keys.Records(c.Request.Context())
	if err != nil {
		level.Error(global.Logger).Log("error", err, "message", "failed to list keys")
		ApiErrorf(c, http.StatusInternalServerError, "failed to list keys")
		return
	}

	batch := &types.KeyBatch{
		Status: codec.StatusOK,
		Date:   time.Now().UTC(),
		List:   types.ListTypeFull,
	}
	if since != nil {
		// a delta response must never claim full-list semantics, or an
		// empty delta would wipe the client's local store
		batch.List = types.ListTypePartial
	}
	for _, record := range records {
		if since != nil && !record.ReceivedAt.After(*since) {
			continue
		}
		batch.Keys = append(batch.Keys, record.Key)
	}

	if strings.Contains(c.GetHeader("Accept"), codec.ContentTypeCBOR) {
		body, eErr := codec.EncodeCBOR(batch)
		if eErr != nil {
			ApiErrorf(c, http.StatusInternalServerError, "failed to encode response")
			return
		}
		c.Data(http.StatusOK, codec.ContentTypeCBOR, body)
		return
	}
	body, eErr := codec.EncodeJSON(batch)
	if eErr != nil {
		ApiErrorf(c, http.StatusInternalServerError, "failed to encode response")
		return
	}
	c.Data(http.StatusOK, codec.ContentTypeJSON, body)
}

type submitKeyInput struct {
	D []byte `json:"d" binding:"required"`
	R int64  `json:"r"`
	L int64  `json:"l"`
}

type submitInput struct {
	Keys []submitKeyInput `json:"keys" binding:"required"`
	Form []struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Str  string `json:"str"`
	} `json:"form"`
	Identifier string `json:"identifier,omitempty"`
}

// SubmitKeys inserts uploaded keys; resubmissions reuse their identifier
func (ka *DiagnosisKeysApi) SubmitKeys(c *gin.Context) {
	var input submitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid submit payload")
		return
	}

	for _, in := range input.Keys {
		if in.R < 0 || in.R > int64(^uint32(0)) {
			ApiErrorf(c, http.StatusBadRequest, "rolling start number out of range")
			return
		}
		key := types.TemporaryExposureKey{
			KeyData:            in.D,
			RollingStartNumber: uint32(in.R),
			TransmissionRisk:   types.RiskFromOrdinal(in.L),
		}
		if _, err := ka.keys.InsertIfAbsent(c.Request.Context(), key); err != nil {
			level.Error(global.Logger).Log("error", err, "message", "failed to store submitted key")
			ApiErrorf(c, http.StatusInternalServerError, "failed to store keys")
			return
		}
	}

	identifier := input.Identifier
	if identifier == "" {
		identifier = uuid.NewString()
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK", "identifier": identifier})
}
