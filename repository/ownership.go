package repository

import (
	"go.mongodb.org/mongo-driver/bson"

	"storyforge/db"
	"storyforge/models"
)

// visibleClause is the read predicate: the caller's own resources plus system defaults.
func visibleClause(owner models.Owner) bson.M {
	if owner.IsSystem() {
		return bson.M{models.FieldOwnerID: models.SystemOwnerKey}
	}
	return bson.M{"$or": bson.A{
		bson.M{models.FieldOwnerID: owner.Key()},
		bson.M{models.FieldOwnerID: models.SystemOwnerKey},
	}}
}

// withVisibility restricts filter to what owner may read. The caller's filter is
// combined under $and so it can never widen the ownership clause.
func withVisibility(filter bson.M, owner models.Owner) bson.M {
	clause := visibleClause(owner)
	if len(filter) == 0 {
		return clause
	}
	return bson.M{"$and": bson.A{filter, clause}}
}

// ownedBy is the write predicate. Unlike reads it never includes system resources,
// so ordinary users can see system defaults but not change them.
func ownedBy(id db.ID, owner models.Owner) bson.M {
	return bson.M{
		models.FieldID:      id,
		models.FieldOwnerID: owner.Key(),
	}
}

// IndexSpecs returns the indexes the ownership queries rely on, for every configured collection.
func IndexSpecs(collections models.Collections) []db.IndexSpec {
	var specs []db.IndexSpec
	for _, kind := range models.AllKinds {
		name, ok := collections[kind]
		if !ok || name == "" {
			continue
		}
		specs = append(specs,
			db.IndexSpec{Collection: name, Keys: bson.D{{Key: models.FieldOwnerID, Value: 1}}},
			db.IndexSpec{Collection: name, Keys: bson.D{{Key: models.FieldOwnerID, Value: 1}, {Key: models.FieldUpdatedAt, Value: -1}}},
		)
	}
	return specs
}
