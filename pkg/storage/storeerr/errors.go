// Package storeerr holds the errors shared by the storage backends.
package storeerr

import "errors"

var ErrNotExist = errors.New("image does not exist")
