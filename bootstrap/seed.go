package bootstrap

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"

	"storyforge/db"
	"storyforge/models"
)

//go:embed system_resources.yaml
var systemResourcesYAML []byte

// SeedKeyField names the stable key every seed entry carries.
const SeedKeyField = "key"

// seedEpoch stamps fallback seed documents so they sort before anything users create.
var seedEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Dataset is a list of seed payloads per kind.
type Dataset map[models.Kind][]bson.M

// Kinds returns the kinds present in the dataset in a stable order.
func (d Dataset) Kinds() []models.Kind {
	out := make([]models.Kind, 0, len(d))
	for _, k := range models.AllKinds {
		if _, ok := d[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// SystemResources parses the embedded list of shared defaults.
func SystemResources() (Dataset, error) {
	return parseDataset(systemResourcesYAML)
}

func parseDataset(raw []byte) (Dataset, error) {
	var parsed map[string][]map[string]interface{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse seed dataset: %w", err)
	}

	names := make([]string, 0, len(parsed))
	for name := range parsed {
		names = append(names, name)
	}
	sort.Strings(names)

	ds := make(Dataset, len(parsed))
	for _, name := range names {
		kind, err := models.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("parse seed dataset: %w", err)
		}
		seen := make(map[string]bool, len(parsed[name]))
		for i, entry := range parsed[name] {
			key, _ := entry[SeedKeyField].(string)
			if key == "" {
				return nil, fmt.Errorf("parse seed dataset: %s entry %d has no %s", name, i, SeedKeyField)
			}
			if seen[key] {
				return nil, fmt.Errorf("parse seed dataset: duplicate key %s in %s", key, name)
			}
			seen[key] = true
			ds[kind] = append(ds[kind], fromYAML(entry).(bson.M))
		}
	}
	return ds, nil
}

// fromYAML turns decoded YAML into bson shapes the stores understand.
func fromYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = fromYAML(val)
		}
		return out
	case []interface{}:
		out := make(bson.A, len(t))
		for i, val := range t {
			out[i] = fromYAML(val)
		}
		return out
	case int:
		return int64(t)
	}
	return v
}

// FallbackSeed builds the dataset the in-memory store starts with: the shared defaults,
// owned by the system, stored under the configured collection names and keyed by their seed key.
func FallbackSeed(collections models.Collections) db.SeedFunc {
	return func() (map[string][]bson.M, error) {
		ds, err := SystemResources()
		if err != nil {
			return nil, err
		}
		seed := make(map[string][]bson.M, len(ds))
		for _, kind := range ds.Kinds() {
			name, ok := collections[kind]
			if !ok {
				continue
			}
			for _, entry := range ds[kind] {
				doc := bson.M{}
				for k, v := range entry {
					doc[k] = v
				}
				doc[models.FieldID] = entry[SeedKeyField]
				doc[models.FieldOwnerID] = models.SystemOwner().Key()
				doc[models.FieldCreatedBy] = models.SystemOwner().Key()
				doc[models.FieldCreatedAt] = seedEpoch
				doc[models.FieldUpdatedAt] = seedEpoch
				seed[name] = append(seed[name], doc)
			}
		}
		return seed, nil
	}
}
