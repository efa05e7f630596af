package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/database"
)

func createLetter(t *testing.T, env *testEnv, token string, body map[string]any) database.AICoverLetter {
	t.Helper()
	w := env.do(t, http.MethodPost, "/v1/cover-letters", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[database.AICoverLetter](t, w)
}

func TestCoverLetterHandler_CreateFromText(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")

	letter := createLetter(t, env, token, map[string]any{
		"cv_text":         "Go developer with five years of experience in Kubernetes and PostgreSQL.",
		"job_title":       "Platform Engineer",
		"company_name":    "Initech",
		"job_description": "Operate our Kubernetes clusters.",
	})
	assert.Contains(t, letter.GeneratedLetter, "Platform Engineer")
	assert.Equal(t, database.ToneProfessional, letter.Tone)
	assert.Equal(t, "standard", letter.TemplateType)
	assert.Nil(t, letter.CVID)
	assert.Nil(t, letter.UploadedCVID)

	w := env.do(t, http.MethodGet, "/v1/cover-letters", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]database.AICoverLetter](t, w), 1)
}

func TestCoverLetterHandler_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")

	cases := []struct {
		name string
		code int
		body map[string]any
	}{
		{"no source", http.StatusBadRequest, map[string]any{"job_title": "Engineer", "job_description": "Build things"}},
		{"missing job title", http.StatusBadRequest, map[string]any{"cv_text": "text", "job_description": "Build things"}},
		{"invalid tone", http.StatusBadRequest, map[string]any{"cv_text": "text", "job_title": "Engineer", "job_description": "Build things", "tone": "sarcastic"}},
		{"invalid template type", http.StatusBadRequest, map[string]any{"cv_text": "text", "job_title": "Engineer", "job_description": "Build things", "template_type": "poster"}},
		{"unknown cv", http.StatusNotFound, map[string]any{"cv_id": 4242, "job_title": "Engineer", "job_description": "Build things"}},
		{"unknown upload", http.StatusNotFound, map[string]any{"uploaded_cv_id": 4242, "job_title": "Engineer", "job_description": "Build things"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/cover-letters", token, tc.body)
			assert.Equal(t, tc.code, w.Code, w.Body.String())
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&database.AICoverLetter{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCoverLetterHandler_FromOtherUsersCV(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.user(t, "alice")
	_, bob := env.user(t, "bob")
	id := createCV(t, env, alice, map[string]any{"title": "CV", "full_name": "Alice Doe"})

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/generate-cover-letter", id), bob, map[string]any{
		"job_title": "Engineer", "job_description": "Build things",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCoverLetterHandler_UpdateRegeneratePreview(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.user(t, "alice")
	_, bob := env.user(t, "bob")

	letter := createLetter(t, env, alice, map[string]any{
		"cv_text":         "Seasoned data engineer.",
		"job_title":       "Data Engineer",
		"company_name":    "Initech",
		"job_description": "Build pipelines.",
	})
	path := fmt.Sprintf("/v1/cover-letters/%d", letter.ID)

	w := env.do(t, http.MethodPatch, path, alice, map[string]any{"generated_letter": "Edited by hand."})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	edited := decode[database.AICoverLetter](t, w)
	assert.Equal(t, "Edited by hand.", edited.GeneratedLetter)
	assert.Equal(t, "Data Engineer", edited.JobTitle)

	w = env.do(t, http.MethodPatch, path, alice, map[string]any{"tone": "sarcastic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, path+"/regenerate", alice, map[string]any{"tone": "friendly"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	regenerated := decode[database.AICoverLetter](t, w)
	assert.Equal(t, database.ToneFriendly, regenerated.Tone)
	assert.Contains(t, regenerated.GeneratedLetter, "Data Engineer")

	w = env.do(t, http.MethodGet, path+"/preview", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.True(t, containsAll(w.Body.String(), "Data Engineer", "Initech"), w.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, path+"/regenerate", bob, nil).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, path, alice, nil).Code)
}
