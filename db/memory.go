package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// MemoryBackend is the in-memory fallback store. Documents are deep-copied on the way in and out,
// so callers never share state with the store.
type MemoryBackend struct {
	tokenFormat

	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryBackend builds a fallback store pre-populated with seed. Seed documents may carry a
// string _id, which is kept as the document's id; otherwise a random id is assigned.
func NewMemoryBackend(seed map[string][]bson.M) (*MemoryBackend, error) {
	b := &MemoryBackend{collections: make(map[string]*memoryCollection)}
	for name, docs := range seed {
		if len(docs) == 0 {
			continue
		}
		if _, err := b.collection(name).InsertMany(context.Background(), docs); err != nil {
			return nil, fmt.Errorf("seed collection %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *MemoryBackend) Collection(name string) Collection {
	return b.collection(name)
}

func (b *MemoryBackend) collection(name string) *memoryCollection {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		c = &memoryCollection{name: name, byID: make(map[string]int)}
		b.collections[name] = c
	}
	return c
}

func (b *MemoryBackend) EnsureIndexes(context.Context, []IndexSpec) error { return nil }
func (b *MemoryBackend) Ping(context.Context) error                       { return nil }
func (b *MemoryBackend) Close(context.Context) error                      { return nil }

type memoryCollection struct {
	name string

	mu   sync.RWMutex
	docs []bson.M
	byID map[string]int
	// used records every id ever inserted so ids are never handed out twice
	used map[string]struct{}
}

func (c *memoryCollection) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched, err := c.scan(filter)
	if err != nil {
		return nil, err
	}
	if len(opts.Sort) > 0 {
		sortDocs(matched, opts.Sort)
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}

	out := make([]bson.M, 0, len(matched))
	for _, doc := range matched {
		out = append(out, copyDoc(doc))
	}
	return out, nil
}

func (c *memoryCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, err := c.first(filter)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, ErrNoDocuments
	}
	return copyDoc(c.docs[idx]), nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc bson.M) (ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(doc)
}

func (c *memoryCollection) InsertMany(ctx context.Context, docs []bson.M) ([]ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]ID, 0, len(docs))
	for _, doc := range docs {
		id, err := c.insert(doc)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter, update bson.M) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.first(filter)
	if err != nil || idx < 0 {
		return 0, err
	}
	// apply to a copy so a rejected update leaves the stored document untouched
	updated := copyDoc(c.docs[idx])
	if _, err := applyUpdate(updated, update); err != nil {
		return 0, err
	}
	c.docs[idx] = updated
	return 1, nil
}

func (c *memoryCollection) UpdateMany(ctx context.Context, filter, update bson.M) (UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res UpdateResult
	for i, doc := range c.docs {
		ok, err := matchFilter(doc, filter)
		if err != nil {
			return res, err
		}
		if !ok {
			continue
		}
		updated := copyDoc(doc)
		changed, err := applyUpdate(updated, update)
		if err != nil {
			return res, err
		}
		c.docs[i] = updated
		res.Matched++
		if changed {
			res.Modified++
		}
	}
	return res, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.first(filter)
	if err != nil || idx < 0 {
		return 0, err
	}
	removed, _ := idString(c.docs[idx][FieldID])
	c.docs = append(c.docs[:idx], c.docs[idx+1:]...)
	delete(c.byID, removed)
	for i := idx; i < len(c.docs); i++ {
		s, _ := idString(c.docs[i][FieldID])
		c.byID[s] = i
	}
	return 1, nil
}

func (c *memoryCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched, err := c.scan(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// insert must be called with c.mu held.
func (c *memoryCollection) insert(doc bson.M) (ID, error) {
	stored := copyDoc(doc)
	if stored == nil {
		stored = bson.M{}
	}

	var id ID
	var err error
	switch raw := stored[FieldID].(type) {
	case nil:
		id, err = tokenFormat{}.NewID("")
	case ID:
		id = raw
	case string:
		id, err = tokenFormat{}.NewID(raw)
	default:
		err = fmt.Errorf("%w: unsupported _id type %T", ErrInvalidIdentifier, raw)
	}
	if err != nil {
		return ID{}, err
	}

	if c.used == nil {
		c.used = make(map[string]struct{})
	}
	if _, taken := c.used[id.value]; taken {
		return ID{}, fmt.Errorf("%w: %s in collection %s", ErrDuplicateKey, id.value, c.name)
	}
	stored[FieldID] = id
	c.used[id.value] = struct{}{}
	c.byID[id.value] = len(c.docs)
	c.docs = append(c.docs, stored)
	return id, nil
}

// first returns the index of the first matching document, or -1.
func (c *memoryCollection) first(filter bson.M) (int, error) {
	// fast path for {_id: X} lookups
	if len(filter) == 1 {
		if raw, ok := filter[FieldID]; ok {
			if s, ok := idString(raw); ok {
				if idx, ok := c.byID[s]; ok {
					return idx, nil
				}
				return -1, nil
			}
		}
	}
	for i, doc := range c.docs {
		ok, err := matchFilter(doc, filter)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

func (c *memoryCollection) scan(filter bson.M) ([]bson.M, error) {
	var out []bson.M
	for _, doc := range c.docs {
		ok, err := matchFilter(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func sortDocs(docs []bson.M, keys bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareValues(docs[i][k.Key], docs[j][k.Key])
			if cmp == 0 {
				continue
			}
			if dir, ok := toFloat(k.Value); ok && dir < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
