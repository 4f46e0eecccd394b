package models

// SystemOwnerKey is the persisted ownerId of shared, read-only defaults.
const SystemOwnerKey = "system"

// Owner identifies who a resource belongs to: a concrete user or the system.
// The zero value means "no owner" and is rejected by the repository.
type Owner struct {
	userID string
	system bool
}

// UserOwner returns an owner for a concrete user id.
func UserOwner(userID string) Owner {
	return Owner{userID: userID}
}

// SystemOwner returns the shared system owner.
func SystemOwner() Owner {
	return Owner{system: true}
}

// OwnerFromKey converts a persisted ownerId back into an Owner.
func OwnerFromKey(key string) Owner {
	if key == SystemOwnerKey {
		return SystemOwner()
	}
	return UserOwner(key)
}

func (o Owner) IsZero() bool   { return !o.system && o.userID == "" }
func (o Owner) IsSystem() bool { return o.system }

// UserID is empty for the system owner.
func (o Owner) UserID() string { return o.userID }

// Key is the value stored in the ownerId field.
func (o Owner) Key() string {
	if o.system {
		return SystemOwnerKey
	}
	return o.userID
}

func (o Owner) String() string {
	if o.system {
		return "system"
	}
	return "user:" + o.userID
}
