package runtime

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hushabye/hush-core/internal/pipeline"
	"github.com/hushabye/hush-core/internal/protocol"
	"github.com/hushabye/hush-core/internal/story"
	"github.com/hushabye/hush-core/internal/storystore"
)

// generateRequest is the JSON body for story creation. Every field is
// optional; whatever is missing gets drawn by the randomizer.
type generateRequest struct {
	Universe    string   `json:"universe"`
	Setting     string   `json:"setting"`
	Theme       string   `json:"theme"`
	Characters  []string `json:"characters"`
	StoryLength string   `json:"story_length"`
	ChildName   string   `json:"child_name"`
}

func (g generateRequest) toPipeline() pipeline.Request {
	return pipeline.Request{
		Universe:    g.Universe,
		Setting:     g.Setting,
		Theme:       g.Theme,
		Characters:  g.Characters,
		StoryLength: g.StoryLength,
		ChildName:   g.ChildName,
	}
}

type storyPayload struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Universe     string    `json:"universe"`
	Setting      string    `json:"setting"`
	Theme        string    `json:"theme"`
	Characters   []string  `json:"characters"`
	StoryLength  string    `json:"story_length"`
	ChildName    string    `json:"child_name"`
	StoryText    string    `json:"story_text"`
	Prompt       string    `json:"prompt,omitempty"`
	AudioPath    string    `json:"audio_path,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	GenerationMS int64     `json:"generation_ms,omitempty"`
	SynthesisMS  int64     `json:"synthesis_ms,omitempty"`
}

func payloadFromGenerated(g pipeline.GeneratedStory) storyPayload {
	return storyPayload{
		ID:           g.ID,
		Title:        g.Title,
		Universe:     g.Elements.Universe,
		Setting:      g.Elements.Setting,
		Theme:        g.Elements.Theme,
		Characters:   g.Elements.Characters,
		StoryLength:  g.Elements.StoryLength,
		ChildName:    g.Elements.ChildName,
		StoryText:    g.StoryText,
		Prompt:       g.Prompt,
		AudioPath:    g.AudioPath,
		Provider:     g.Provider,
		CreatedAt:    g.CreatedAt,
		GenerationMS: g.GenerationTime.Milliseconds(),
		SynthesisMS:  g.SynthesisTime.Milliseconds(),
	}
}

func payloadFromStored(st storystore.StoredStory) storyPayload {
	return storyPayload{
		ID:          st.ID,
		Title:       st.Title,
		Universe:    st.Universe,
		Setting:     st.Setting,
		Theme:       st.Theme,
		Characters:  st.Characters,
		StoryLength: st.StoryLength,
		ChildName:   st.ChildName,
		StoryText:   st.StoryText,
		Prompt:      st.Prompt,
		AudioPath:   st.AudioPath,
		Provider:    st.Provider,
		CreatedAt:   st.CreatedAt,
	}
}

type prefsPayload struct {
	ChildName         string `json:"child_name"`
	FavoriteUniverse  string `json:"favorite_universe"`
	FavoriteCharacter string `json:"favorite_character"`
	FavoriteSetting   string `json:"favorite_setting"`
	FavoriteTheme     string `json:"favorite_theme"`
	PreferredLength   string `json:"preferred_length"`
}

func (p prefsPayload) toStory() story.Preferences {
	return story.Preferences{
		ChildName:         p.ChildName,
		FavoriteUniverse:  p.FavoriteUniverse,
		FavoriteCharacter: p.FavoriteCharacter,
		FavoriteSetting:   p.FavoriteSetting,
		FavoriteTheme:     p.FavoriteTheme,
		PreferredLength:   p.PreferredLength,
	}
}

func prefsFromStory(p story.Preferences) prefsPayload {
	return prefsPayload{
		ChildName:         p.ChildName,
		FavoriteUniverse:  p.FavoriteUniverse,
		FavoriteCharacter: p.FavoriteCharacter,
		FavoriteSetting:   p.FavoriteSetting,
		FavoriteTheme:     p.FavoriteTheme,
		PreferredLength:   p.PreferredLength,
	}
}

func (r *Runtime) registerStoryRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/stories", r.handleGenerate)
	mux.HandleFunc("GET /v1/stories/stream", r.handleStream)
	mux.HandleFunc("GET /v1/stories", r.handleListStories)
	mux.HandleFunc("GET /v1/stories/{id}", r.handleGetStory)
	mux.HandleFunc("GET /v1/options", r.handleOptions)
	mux.HandleFunc("GET /v1/preferences", r.handleGetPreferences)
	mux.HandleFunc("PUT /v1/preferences", r.handlePutPreferences)
}

// handleGenerate runs the full pipeline and answers once the story is
// written and its audio asset is on disk. An empty body means "surprise me".
func (r *Runtime) handleGenerate(w http.ResponseWriter, req *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	generated, err := r.stories.Generate(req.Context(), body.toPipeline())
	if err != nil {
		r.logger.Error("story generation failed", slogError(err))
		writeError(w, http.StatusInternalServerError, "story generation failed")
		return
	}
	writeJSON(w, http.StatusOK, payloadFromGenerated(generated))
}

// handleStream emits the generation as newline-delimited JSON events.
// Scenario overrides come from query parameters since the body of a GET
// is off limits for EventSource-style clients.
func (r *Runtime) handleStream(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	enc := json.NewEncoder(w)
	wroteHeader := false
	emit := func(ev protocol.StreamEvent) error {
		if !wroteHeader {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			wroteHeader = true
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := r.stories.GenerateStream(req.Context(), requestFromQuery(req.URL.Query()), emit)
	if errors.Is(err, pipeline.ErrBusy) {
		// The gate rejects before the first event, so the response is still clean.
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		// Pipeline failures were already delivered in-band as an error event.
		r.logger.Warn("streaming generation failed", slogError(err))
	}
}

func requestFromQuery(q url.Values) pipeline.Request {
	return pipeline.Request{
		Universe:    q.Get("universe"),
		Setting:     q.Get("setting"),
		Theme:       q.Get("theme"),
		Characters:  splitList(q.Get("characters")),
		StoryLength: q.Get("story_length"),
		ChildName:   q.Get("child_name"),
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *Runtime) handleListStories(w http.ResponseWriter, req *http.Request) {
	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	stories, err := r.store.RecentStories(req.Context(), limit)
	if err != nil {
		r.logger.Error("failed to list stories", slogError(err))
		writeError(w, http.StatusInternalServerError, "failed to list stories")
		return
	}
	payload := make([]storyPayload, 0, len(stories))
	for _, st := range stories {
		payload = append(payload, payloadFromStored(st))
	}
	writeJSON(w, http.StatusOK, payload)
}

func (r *Runtime) handleGetStory(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseInt(req.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid story id")
		return
	}

	st, err := r.store.StoryByID(req.Context(), id)
	if errors.Is(err, storystore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "story not found")
		return
	}
	if err != nil {
		r.logger.Error("failed to load story", slogError(err))
		writeError(w, http.StatusInternalServerError, "failed to load story")
		return
	}
	writeJSON(w, http.StatusOK, payloadFromStored(st))
}

func (r *Runtime) handleOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Universes  []string            `json:"universes"`
		Settings   []string            `json:"settings"`
		Themes     []string            `json:"themes"`
		Characters []string            `json:"characters"`
		Lengths    []string            `json:"lengths"`
		Rosters    map[string][]string `json:"rosters"`
	}{
		Universes:  story.Universes,
		Settings:   story.Settings,
		Themes:     story.Themes,
		Characters: story.Characters,
		Lengths:    story.Lengths,
		Rosters:    story.UniverseRosters,
	})
}

func (r *Runtime) handleGetPreferences(w http.ResponseWriter, req *http.Request) {
	prefs, err := r.store.Preferences(req.Context())
	if err != nil {
		r.logger.Error("failed to load preferences", slogError(err))
		writeError(w, http.StatusInternalServerError, "failed to load preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefsFromStory(prefs))
}

func (r *Runtime) handlePutPreferences(w http.ResponseWriter, req *http.Request) {
	var body prefsPayload
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := r.store.SavePreferences(req.Context(), body.toStory()); err != nil {
		r.logger.Error("failed to save preferences", slogError(err))
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
