package errx

import (
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

// WrapMongo maps driver errors to AppError. A missing document is a 404,
// anything else is treated as an upstream failure.
func WrapMongo(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return New(err, http.StatusNotFound, MongoNotFoundMessage)
	}

	return New(err, http.StatusBadGateway, MongoErrorMessage)
}
