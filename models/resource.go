package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"storyforge/db"
)

// Persisted field names shared by every resource.
const (
	FieldID        = db.FieldID
	FieldOwnerID   = "ownerId"
	FieldCreatedBy = "createdBy"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// reservedFields can only be written by the repository itself.
var reservedFields = map[string]bool{
	FieldID:        true,
	FieldOwnerID:   true,
	FieldCreatedBy: true,
	FieldCreatedAt: true,
	FieldUpdatedAt: true,
}

// IsReservedField reports whether name is one of the common resource attributes.
func IsReservedField(name string) bool {
	return reservedFields[name]
}

// Resource is a stored document with its common attributes lifted out of the payload.
type Resource struct {
	ID        db.ID
	Owner     Owner
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    bson.M
}

// MarshalJSON renders the payload flat, next to the common attributes.
func (r Resource) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+6)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID.String()
	out[FieldOwnerID] = r.Owner.Key()
	out["isSystem"] = r.Owner.IsSystem()
	out[FieldCreatedBy] = r.CreatedBy
	out[FieldCreatedAt] = r.CreatedAt
	out[FieldUpdatedAt] = r.UpdatedAt
	return json.Marshal(out)
}

// OwnerID is the persisted owner key, exposed for JSON responses.
func (r *Resource) OwnerID() string { return r.Owner.Key() }

// IsSystem reports whether the resource is a shared system default.
func (r *Resource) IsSystem() bool { return r.Owner.IsSystem() }

// ResourceFromDocument splits a raw document into common attributes and payload.
func ResourceFromDocument(doc bson.M) *Resource {
	r := &Resource{Fields: bson.M{}}
	for k, v := range doc {
		switch k {
		case FieldID:
			if id, ok := v.(db.ID); ok {
				r.ID = id
			}
		case FieldOwnerID:
			if s, ok := v.(string); ok {
				r.Owner = OwnerFromKey(s)
			}
		case FieldCreatedBy:
			r.CreatedBy, _ = v.(string)
		case FieldCreatedAt:
			r.CreatedAt = asTime(v)
		case FieldUpdatedAt:
			r.UpdatedAt = asTime(v)
		default:
			r.Fields[k] = v
		}
	}
	return r
}

// Document flattens the resource back into its stored shape. The id is omitted when zero.
func (r *Resource) Document() bson.M {
	doc := bson.M{}
	for k, v := range r.Fields {
		if !IsReservedField(k) {
			doc[k] = v
		}
	}
	if !r.ID.IsZero() {
		doc[FieldID] = r.ID
	}
	doc[FieldOwnerID] = r.Owner.Key()
	doc[FieldCreatedBy] = r.CreatedBy
	doc[FieldCreatedAt] = r.CreatedAt
	doc[FieldUpdatedAt] = r.UpdatedAt
	return doc
}

func asTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case interface{ Time() time.Time }:
		return t.Time()
	}
	return time.Time{}
}
