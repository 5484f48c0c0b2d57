package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/benmeehan/rendezvous-agent/pkg/geo"
)

const (
	// DefaultCollection is the collection location documents live under.
	DefaultCollection = "location"

	fieldLatitude  = "latitude"
	fieldLongitude = "longitude"
)

var (
	// ErrDocumentNotFound is returned when no document exists for a key.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrMalformedDocument is returned when a document exists but its fields are missing or mistyped.
	ErrMalformedDocument = errors.New("malformed location document")
)

// LocationStore reads and writes one coordinate document per key.
type LocationStore interface {
	Get(ctx context.Context, key string) (geo.Coordinate, error)
	Set(ctx context.Context, key string, coord geo.Coordinate) error
}

// EncodeDocument converts a coordinate into the stored document shape.
func EncodeDocument(coord geo.Coordinate) map[string]any {
	return map[string]any{
		fieldLatitude:  coord.Latitude,
		fieldLongitude: coord.Longitude,
	}
}

// DecodeDocument extracts a coordinate from a stored document.
// Both fields must be present, float64 and within range.
func DecodeDocument(doc map[string]any) (geo.Coordinate, error) {
	if doc == nil {
		return geo.Coordinate{}, ErrDocumentNotFound
	}

	lat, ok := doc[fieldLatitude].(float64)
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("%w: %s is %T", ErrMalformedDocument, fieldLatitude, doc[fieldLatitude])
	}
	lng, ok := doc[fieldLongitude].(float64)
	if !ok {
		return geo.Coordinate{}, fmt.Errorf("%w: %s is %T", ErrMalformedDocument, fieldLongitude, doc[fieldLongitude])
	}

	coord := geo.Coordinate{Latitude: lat, Longitude: lng}
	if err := coord.Validate(); err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return coord, nil
}

func documentPath(collection, key string) string {
	return collection + "/" + key
}
