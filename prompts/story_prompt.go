package prompts

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"storyforge/models"
)

// StoryInput is everything a story prompt is built from. All resources are optional.
type StoryInput struct {
	Characters   []*models.Resource
	Locations    []*models.Resource
	Themes       []*models.Resource
	Archetypes   []*models.Resource
	Parameters   *models.Resource
	Instructions string
}

// skippedFields are either rendered first or add nothing to a prompt.
var skippedFields = map[string]bool{"name": true, "description": true, "key": true}

// ConstructStoryPrompt builds the prompt for a new story from the selected entities.
func ConstructStoryPrompt(in StoryInput) string {
	var b strings.Builder

	b.WriteString("Write a new story using the elements below.\n")

	writeSection(&b, "CHARACTERS", in.Characters)
	writeSection(&b, "LOCATIONS", in.Locations)
	writeSection(&b, "THEMES", in.Themes)
	writeSection(&b, "ARCHETYPES", in.Archetypes)

	if in.Parameters != nil {
		b.WriteString("\nSTORY PARAMETERS:\n")
		for _, line := range attributes(in.Parameters) {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	if s := strings.TrimSpace(in.Instructions); s != "" {
		fmt.Fprintf(&b, "\nADDITIONAL INSTRUCTIONS FROM THE READER:\n%s\n", s)
	}

	b.WriteString(`
IMPORTANT INSTRUCTIONS:
- Every character listed above must appear in the story
- Keep the story consistent with the descriptions you were given
- Do not introduce violence or themes unsuitable for the audience`)

	return b.String()
}

func writeSection(b *strings.Builder, heading string, resources []*models.Resource) {
	if len(resources) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", heading)
	for _, r := range resources {
		attrs := attributes(r)
		if len(attrs) == 0 {
			continue
		}
		fmt.Fprintf(b, "- %s\n", attrs[0])
		for _, a := range attrs[1:] {
			fmt.Fprintf(b, "  %s\n", a)
		}
	}
}

// attributes renders a resource's payload as "label: value" lines, name first.
func attributes(r *models.Resource) []string {
	var lines []string
	if name, ok := r.Fields["name"]; ok {
		lines = append(lines, formatValue(name))
	}
	if desc, ok := r.Fields["description"]; ok {
		lines = append(lines, formatValue(desc))
	}

	var rest []string
	for k := range r.Fields {
		if skippedFields[k] {
			continue
		}
		rest = append(rest, k)
	}
	sort.Strings(rest)
	for _, k := range rest {
		if v := formatValue(r.Fields[k]); v != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return lines
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := formatValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case bson.A:
		return formatValue([]interface{}(t))
	case []string:
		return strings.Join(t, ", ")
	}
	return fmt.Sprint(v)
}
