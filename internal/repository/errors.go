package repository

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// wrap normalizes driver errors: missing documents become ErrNotFound and
// unique index violations ErrDuplicate, everything else keeps its cause.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.WithMessage(ErrDuplicate, op)
	}
	return errors.Wrap(err, op)
}
