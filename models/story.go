package models

import "go.mongodb.org/mongo-driver/bson"

// Story is the payload stored for a generated story.
type Story struct {
	Title        string   `bson:"title" json:"title"`
	Content      string   `bson:"content" json:"content"`
	Prompt       string   `bson:"prompt" json:"prompt"`
	Model        string   `bson:"model" json:"model"`
	CharacterIDs []string `bson:"characterIds" json:"characterIds"`
	LocationIDs  []string `bson:"locationIds" json:"locationIds"`
	ThemeIDs     []string `bson:"themeIds" json:"themeIds"`
	ArchetypeIDs []string `bson:"archetypeIds" json:"archetypeIds"`
	ParameterID  string   `bson:"parameterId,omitempty" json:"parameterId,omitempty"`
}

// Fields converts the story into a resource payload.
func (s Story) Fields() bson.M {
	fields := bson.M{
		"title":        s.Title,
		"content":      s.Content,
		"prompt":       s.Prompt,
		"model":        s.Model,
		"characterIds": stringsToArray(s.CharacterIDs),
		"locationIds":  stringsToArray(s.LocationIDs),
		"themeIds":     stringsToArray(s.ThemeIDs),
		"archetypeIds": stringsToArray(s.ArchetypeIDs),
	}
	if s.ParameterID != "" {
		fields["parameterId"] = s.ParameterID
	}
	return fields
}

func stringsToArray(in []string) bson.A {
	out := make(bson.A, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
