package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
	"github.com/keywatch/go-keywatch-client/types"
)

type couchOK struct {
	IsOK bool   `json:"ok"`
	Rev  string `json:"rev,omitempty"`
}

type couchError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type couchAllDocs struct {
	TotalRows int64 `json:"total_rows"`
	Offset    int64 `json:"offset"`
	Rows      []struct {
		ID  string          `json:"id"`
		Doc json.RawMessage `json:"doc"`
	} `json:"rows"`
}

// implements Repository interface using CouchDB
type CouchDBRepository struct {
	client *resty.Client
	dbName string
}

func NewCouchDBRepository(url, dbName string, username string, password string, mock bool) (Repository, error) {
	cl := resty.New().SetBaseURL(url).SetTimeout(time.Second * 10)
	cl.SetHeader("Content-Type", "application/json")
	cl.SetHeader("Accept", "application/json")
	cl.SetHeader("User-Agent", "go-keywatch-client/1.0.0")
	cl.SetBasicAuth(username, password)

	if mock {
		httpmock.ActivateNonDefault(cl.GetClient())
	}

	existsRes, existsErr := cl.R().Head(dbName)
	if existsErr != nil {
		return nil, fmt.Errorf("failed to check if database exists: %s", existsErr.Error())
	}
	if existsRes.StatusCode() == 200 {
		return &CouchDBRepository{cl, dbName}, nil
	}

	var ok couchOK
	var dbErr couchError
	// create DB since it doesn't exist
	cl.R().SetResult(&ok).SetError(&dbErr).Put(dbName)
	if dbErr.Error != "" {
		return nil, fmt.Errorf("failed to create database %s: %s", dbName, dbErr.Error)
	}
	if !ok.IsOK {
		return nil, fmt.Errorf("failed to create database %s", dbName)
	}
	return &CouchDBRepository{cl, dbName}, nil
}

func (c *CouchDBRepository) GetDBName() string {
	return c.dbName
}

// GetByID returns a raw document by its ID
func (c *CouchDBRepository) GetByID(ctx context.Context, id string) (json.RawMessage, error) {
	response, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("%s/%s", c.dbName, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), types.ErrStorage)
	}
	if hErr := handleError(response); hErr != nil {
		return nil, hErr
	}
	return json.RawMessage(response.Body()), nil
}

// GetAll returns all documents in the database keyed by ID. A limit of zero
// or less means unlimited; CouchDB reads limit=0 as "zero rows", so the
// parameter is only sent when an actual bound was asked for.
func (c *CouchDBRepository) GetAll(ctx context.Context, limit int, skip int) (map[string]json.RawMessage, error) {
	var data couchAllDocs

	request := c.client.R().
		SetContext(ctx).
		SetQueryParam("include_docs", "true").
		SetResult(&data)
	if limit > 0 {
		request.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	if skip > 0 {
		request.SetQueryParam("skip", fmt.Sprintf("%d", skip))
	}
	response, err := request.Get(fmt.Sprintf("%s/_all_docs", c.dbName))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), types.ErrStorage)
	}
	if hErr := handleError(response); hErr != nil {
		return nil, hErr
	}

	documents := make(map[string]json.RawMessage, len(data.Rows))
	for _, row := range data.Rows {
		documents[row.ID] = row.Doc
	}
	return documents, nil
}

// Save creates a new document; an existing ID is a conflict
func (c *CouchDBRepository) Save(ctx context.Context, id string, doc interface{}) error {
	response, err := c.client.R().SetContext(ctx).SetBody(doc).Put(fmt.Sprintf("%s/%s", c.dbName, id))
	if err != nil {
		return fmt.Errorf("%s: %w", err.Error(), types.ErrStorage)
	}
	return handleError(response)
}

// Update replaces an existing document, carrying over its current revision
func (c *CouchDBRepository) Update(ctx context.Context, id string, doc interface{}) error {
	rev, err := c.currentRev(ctx, id)
	if err != nil {
		return err
	}

	body, mErr := json.Marshal(doc)
	if mErr != nil {
		return fmt.Errorf("%s: %w", mErr.Error(), types.ErrStorage)
	}
	var withRev map[string]interface{}
	if uErr := json.Unmarshal(body, &withRev); uErr != nil {
		return fmt.Errorf("%s: %w", uErr.Error(), types.ErrStorage)
	}
	withRev["_rev"] = rev

	response, rErr := c.client.R().SetContext(ctx).SetBody(withRev).Put(fmt.Sprintf("%s/%s", c.dbName, id))
	if rErr != nil {
		return fmt.Errorf("%s: %w", rErr.Error(), types.ErrStorage)
	}
	return handleError(response)
}

// Delete deletes a document by its ID
func (c *CouchDBRepository) Delete(ctx context.Context, id string) error {
	rev, err := c.currentRev(ctx, id)
	if err != nil {
		return err
	}
	response, dErr := c.client.R().SetContext(ctx).SetQueryParam("rev", rev).Delete(fmt.Sprintf("%s/%s", c.dbName, id))
	if dErr != nil {
		return fmt.Errorf("%s: %w", dErr.Error(), types.ErrStorage)
	}
	return handleError(response)
}

func (c *CouchDBRepository) currentRev(ctx context.Context, id string) (string, error) {
	raw, err := c.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	var doc struct {
		Rev string `json:"_rev"`
	}
	if uErr := json.Unmarshal(raw, &doc); uErr != nil {
		return "", fmt.Errorf("%s: %w", uErr.Error(), types.ErrStorage)
	}
	return doc.Rev, nil
}
