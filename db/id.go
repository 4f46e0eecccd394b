package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldID is the primary key field of every document.
const FieldID = "_id"

// ErrInvalidIdentifier is returned when a string cannot be parsed into the active backend's id form.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ID is an opaque, backend-assigned resource identifier.
// IDs compare with == and round-trip through String and the backend's ParseID.
type ID struct {
	value string
}

func (id ID) String() string { return id.value }
func (id ID) IsZero() bool   { return id.value == "" }

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// idFormat creates and validates ids for one backend.
type idFormat interface {
	NewID(seed string) (ID, error)
	ParseID(s string) (ID, error)
}

// objectIDFormat is used by the MongoDB backend.
type objectIDFormat struct{}

func (objectIDFormat) NewID(seed string) (ID, error) {
	if seed == "" {
		return ID{value: primitive.NewObjectID().Hex()}, nil
	}
	return objectIDFormat{}.ParseID(seed)
}

func (objectIDFormat) ParseID(s string) (ID, error) {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return ID{value: oid.Hex()}, nil
}

// tokenFormat is used by the in-memory fallback: random UUIDs, or caller supplied seed tokens.
type tokenFormat struct{}

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func (tokenFormat) NewID(seed string) (ID, error) {
	if seed == "" {
		return ID{value: uuid.NewString()}, nil
	}
	return tokenFormat{}.ParseID(seed)
}

func (tokenFormat) ParseID(s string) (ID, error) {
	if !tokenPattern.MatchString(s) {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return ID{value: s}, nil
}

// idString extracts the comparable string form of an id-shaped value.
func idString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case ID:
		return t.value, true
	case string:
		return t, true
	case primitive.ObjectID:
		return t.Hex(), true
	}
	return "", false
}
