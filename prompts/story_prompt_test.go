package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"storyforge/models"
)

func resource(fields bson.M) *models.Resource {
	return &models.Resource{Owner: models.SystemOwner(), Fields: fields}
}

func TestConstructStoryPrompt(t *testing.T) {
	prompt := ConstructStoryPrompt(StoryInput{
		Characters: []*models.Resource{
			resource(bson.M{"name": "Oberon", "description": "An old owl.", "traits": bson.A{"patient", "cryptic"}, "key": "char-wise-owl"}),
		},
		Locations:    []*models.Resource{resource(bson.M{"name": "Saltmere Harbor"})},
		Themes:       []*models.Resource{resource(bson.M{"name": "Friendship"})},
		Parameters:   resource(bson.M{"name": "Bedtime story", "maxWords": int64(600), "tone": "gentle"}),
		Instructions: "  Make it rhyme.  ",
	})

	assert.Contains(t, prompt, "CHARACTERS:\n- Oberon\n  An old owl.\n  traits: patient, cryptic\n")
	assert.Contains(t, prompt, "LOCATIONS:\n- Saltmere Harbor\n")
	assert.Contains(t, prompt, "THEMES:\n- Friendship\n")
	assert.Contains(t, prompt, "STORY PARAMETERS:\n- Bedtime story\n- maxWords: 600\n- tone: gentle\n")
	assert.Contains(t, prompt, "ADDITIONAL INSTRUCTIONS FROM THE READER:\nMake it rhyme.\n")
	assert.NotContains(t, prompt, "ARCHETYPES")
	assert.NotContains(t, prompt, "char-wise-owl")
}

func TestConstructStoryPromptMinimal(t *testing.T) {
	prompt := ConstructStoryPrompt(StoryInput{})
	assert.True(t, strings.HasPrefix(prompt, "Write a new story"))
	assert.NotContains(t, prompt, "CHARACTERS")
	assert.NotContains(t, prompt, "ADDITIONAL INSTRUCTIONS")
}
