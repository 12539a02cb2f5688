package storage

import (
	"context"
	"fmt"

	"github.com/in4it/imagepipe/pkg/api"
	"github.com/in4it/imagepipe/pkg/storage/dynamodb"
	"github.com/in4it/imagepipe/pkg/storage/local"
	"github.com/in4it/imagepipe/pkg/storage/storeerr"
)

var ErrNotExist = storeerr.ErrNotExist

// Storage is the catalog store. Every operation is scoped to a single key.
type Storage interface {
	// PutImage creates the record if it doesn't exist yet. An existing record
	// is left as is.
	PutImage(ctx context.Context, image api.Image) error
	// UpdateAttribute sets one attribute on an existing record. Returns
	// ErrNotExist when there is no record for key.
	UpdateAttribute(ctx context.Context, key, attribute, value string) error
	// DeleteImage removes the record. Deleting a missing key is not an error.
	DeleteImage(ctx context.Context, key string) error
	GetImage(ctx context.Context, key string) (api.Image, error)
}

func NewStorage(t string, config interface{}) (Storage, error) {
	switch t {
	case "local":
		c, ok := config.(local.Config)
		if !ok {
			return nil, fmt.Errorf("local storage: unexpected config type %T", config)
		}
		return local.NewLocalStorage(c)
	case "dynamodb":
		c, ok := config.(dynamodb.Config)
		if !ok {
			return nil, fmt.Errorf("dynamodb storage: unexpected config type %T", config)
		}
		return dynamodb.NewDynamoDBStorage(c)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", t)
	}
}
