package repository

import (
	"context"
	"encoding/json"

	"github.com/keywatch/go-keywatch-client/types"
)

const (
	// database names
	DiagnosisKeys = "diagnosis_keys" // keys fetched from the remote server
	Exposures     = "exposures"      // persisted exposure match results
	ServerKeys    = "server_keys"    // reference server's own key table
)

// Repository is a simple entity store with create/query/update semantics.
// Documents are addressed by ID; Save fails with ErrConflict when the ID
// already exists, Update replaces an existing document.
type Repository interface {
	GetDBName() string
	GetByID(ctx context.Context, id string) (json.RawMessage, error)
	GetAll(ctx context.Context, limit int, skip int) (map[string]json.RawMessage, error)
	Save(ctx context.Context, id string, doc interface{}) error
	Update(ctx context.Context, id string, doc interface{}) error
	Delete(ctx context.Context, id string) error
}

// DBSelector returns the repository bound to a database name
type DBSelector interface {
	AddDB(db Repository)
	ChooseDB(dbName string) (Repository, error)
}

type dbSelector struct {
	dbs []Repository
}

func NewDBSelector() DBSelector {
	return &dbSelector{}
}

// adds a database to the database selector
func (c *dbSelector) AddDB(db Repository) {
	c.dbs = append(c.dbs, db)
}

// returns the required database
func (c *dbSelector) ChooseDB(dbName string) (Repository, error) {
	for i, r := range c.dbs {
		if r.GetDBName() == dbName {
			return c.dbs[i], nil
		}
	}
	return nil, types.ErrNotFound
}

// MapToObject unmarshals a stored document into the given struct pointer
func MapToObject(raw json.RawMessage, obj interface{}) error {
	return json.Unmarshal(raw, obj)
}
