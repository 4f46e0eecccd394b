package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storyforge/auth"
	"storyforge/generator"
	"storyforge/models"
	"storyforge/prompts"
)

// GenerateRequest selects the entities a story is built from.
type GenerateRequest struct {
	Title        string   `json:"title,omitempty"`
	CharacterIDs []string `json:"characterIds"`
	LocationIDs  []string `json:"locationIds,omitempty"`
	ThemeIDs     []string `json:"themeIds,omitempty"`
	ArchetypeIDs []string `json:"archetypeIds,omitempty"`
	ParameterID  string   `json:"parameterId,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	// Draft stores the result as a story draft instead of a story.
	Draft bool `json:"draft,omitempty"`
}

const maxEntitiesPerKind = 10

func (req GenerateRequest) validate() error {
	if len(req.CharacterIDs) == 0 {
		return errors.New("at least one character is required")
	}
	for name, ids := range map[string][]string{
		"characterIds": req.CharacterIDs,
		"locationIds":  req.LocationIDs,
		"themeIds":     req.ThemeIDs,
		"archetypeIds": req.ArchetypeIDs,
	} {
		if len(ids) > maxEntitiesPerKind {
			return fmt.Errorf("%s: at most %d entries", name, maxEntitiesPerKind)
		}
	}
	return nil
}

// GenerateStory handles POST /api/stories/generate. Every referenced entity is read with the
// caller's visibility, so a story can only be built from the caller's own resources and
// system defaults.
func (h *Handler) GenerateStory(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	owner := auth.OwnerFromContext(ctx)

	input := prompts.StoryInput{Instructions: req.Instructions}
	var err error
	if input.Characters, err = h.resolve(ctx, models.KindCharacters, req.CharacterIDs, owner); err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	if input.Locations, err = h.resolve(ctx, models.KindLocations, req.LocationIDs, owner); err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	if input.Themes, err = h.resolve(ctx, models.KindThemes, req.ThemeIDs, owner); err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	if input.Archetypes, err = h.resolve(ctx, models.KindArchetypes, req.ArchetypeIDs, owner); err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	if req.ParameterID != "" {
		params, err := h.resolve(ctx, models.KindStoryParameters, []string{req.ParameterID}, owner)
		if err != nil {
			writeRepoError(w, r, h.log, err)
			return
		}
		input.Parameters = params[0]
	}

	prompt := prompts.ConstructStoryPrompt(input)
	text, err := h.gen.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, generator.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		h.log.Error().Err(err).Str("owner", owner.String()).Msg("story generation failed")
		writeError(w, http.StatusBadGateway, "Failed to generate story")
		return
	}

	title, body := generator.SplitTitle(text)
	if t := strings.TrimSpace(req.Title); t != "" {
		title = t
	}
	if title == "" {
		title = "Untitled story"
	}

	story := models.Story{
		Title:        title,
		Content:      body,
		Prompt:       prompt,
		Model:        h.gen.Model(),
		CharacterIDs: req.CharacterIDs,
		LocationIDs:  req.LocationIDs,
		ThemeIDs:     req.ThemeIDs,
		ArchetypeIDs: req.ArchetypeIDs,
		ParameterID:  req.ParameterID,
	}

	kind := models.KindStories
	if req.Draft {
		kind = models.KindStoryDrafts
	}
	collection, err := h.repo.Collections().Name(kind)
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}

	res, err := h.repo.Create(ctx, collection, story.Fields(), owner)
	if err != nil {
		writeRepoError(w, r, h.log, err)
		return
	}
	h.log.Info().Str("owner", owner.String()).Str("id", res.ID.String()).Str("collection", collection).Msg("story saved")
	writeJSON(w, http.StatusCreated, res)
}

// resolve loads every id of kind as owner.
func (h *Handler) resolve(ctx context.Context, kind models.Kind, ids []string, owner models.Owner) ([]*models.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	collection, err := h.repo.Collections().Name(kind)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Resource, 0, len(ids))
	for _, raw := range ids {
		id, err := h.repo.ParseID(ctx, raw)
		if err != nil {
			return nil, err
		}
		res, err := h.repo.FindByID(ctx, collection, id, owner)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
