package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/database"
	"cvbuilder/internal/tasks"
)

func createCV(t *testing.T, env *testEnv, token string, body map[string]any) uint {
	t.Helper()
	w := env.do(t, http.MethodPost, "/v1/cvs", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[idBody](t, w).ID
}

func TestCVHandler_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/cvs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCVHandler_CreateRequiresTitle(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")

	w := env.do(t, http.MethodPost, "/v1/cvs", token, map[string]any{"full_name": "Alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCVHandler_LimitPerUser(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")

	for i := 0; i < 3; i++ {
		createCV(t, env, token, map[string]any{"title": fmt.Sprintf("CV %d", i)})
	}
	w := env.do(t, http.MethodPost, "/v1/cvs", token, map[string]any{"title": "one too many"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCVHandler_DuplicateRespectsLimit(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")

	var last uint
	for i := 0; i < 3; i++ {
		last = createCV(t, env, token, map[string]any{"title": fmt.Sprintf("CV %d", i)})
	}
	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/duplicate", last), token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	var count int64
	require.NoError(t, env.db.Model(&database.CV{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestCVHandler_DuplicateCopiesSections(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "Backend", "full_name": "Alice Doe", "email": "alice@example.com"})

	for _, company := range []string{"Acme", "Globex"} {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/experiences", id), token, map[string]any{
			"job_title": "Engineer", "company": company, "is_current": true,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/educations", id), token, map[string]any{
		"degree": "BSc", "institution": "MIT",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	for _, skill := range []string{"Go", "SQL", "Docker"} {
		w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/skills", id), token, map[string]any{"name": skill, "level": "advanced"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/duplicate", id), token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	dupID := decode[idBody](t, w).ID
	assert.NotEqual(t, id, dupID)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d", dupID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	dup := decode[database.CV](t, w)
	assert.Equal(t, "Backend (Copy)", dup.Title)
	assert.Equal(t, "Alice Doe", dup.FullName)
	require.Len(t, dup.Experiences, 2)
	require.Len(t, dup.Educations, 1)
	require.Len(t, dup.Skills, 3)
	assert.Equal(t, "MIT", dup.Educations[0].Institution)
	for _, e := range dup.Experiences {
		assert.Equal(t, dupID, e.CVID)
	}
}

func TestCVHandler_OtherUsersCVIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.user(t, "alice")
	_, bob := env.user(t, "bob")
	id := createCV(t, env, alice, map[string]any{"title": "Private"})

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d", id), bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, fmt.Sprintf("/v1/cvs/%d", id), bob, nil).Code)
	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/skills", id), bob, map[string]any{"name": "Go"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/cvs/abc", bob, nil).Code)
}

func TestCVHandler_PatchKeepsOtherFields(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "Backend", "full_name": "Alice Doe"})

	w := env.do(t, http.MethodPatch, fmt.Sprintf("/v1/cvs/%d", id), token, map[string]any{"summary": "Go developer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[database.CV](t, w)
	assert.Equal(t, "Backend", got.Title)
	assert.Equal(t, "Alice Doe", got.FullName)
	assert.Equal(t, "Go developer", got.Summary)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/v1/cvs/%d", id), token, map[string]any{"summary": "no title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCVHandler_CompletionAndValidate(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "Backend", "full_name": "Alice Doe"})

	w := env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d/completion-status", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[struct {
		CompletionPercentage int      `json:"completion_percentage"`
		IsComplete           bool     `json:"is_complete"`
		MissingFields        []string `json:"missing_fields"`
	}](t, w)
	assert.Equal(t, 25, status.CompletionPercentage)
	assert.False(t, status.IsComplete)
	assert.NotEmpty(t, status.MissingFields)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/validate", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[struct {
		IsValid bool     `json:"is_valid"`
		Errors  []string `json:"errors"`
	}](t, w)
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Errors)
}

func TestCVHandler_PreviewHTML(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "Backend", "full_name": "Alice Doe"})

	w := env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d/preview?format=html", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Alice Doe")

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d/preview", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"plain_text"`)
}

func TestCVHandler_RejectsForeignTemplate(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	other := uint(999)
	tpl := database.Template{Name: "theirs", Content: "<p>{{.FullName}}</p>", Type: database.TemplateTypeCV, Style: "modern", CreatedByID: &other}
	require.NoError(t, env.db.Create(&tpl).Error)
	letterTpl := database.Template{Name: "letter", Content: "<p>{{.JobTitle}}</p>", Type: database.TemplateTypeCoverLetter, Style: "modern"}
	require.NoError(t, env.db.Create(&letterTpl).Error)

	w := env.do(t, http.MethodPost, "/v1/cvs", token, map[string]any{"title": "CV", "template_id": tpl.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/v1/cvs", token, map[string]any{"title": "CV", "template_id": letterTpl.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCVHandler_ExportAndDownloadLink(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "Backend CV"})

	w := env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d/download-link", id), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/export", id), token, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "task-1")
	require.Len(t, env.queue.tasks, 1)
	assert.Equal(t, tasks.TypeCVExportPDF, env.queue.tasks[0].Type())

	var stored database.CV
	require.NoError(t, env.db.First(&stored, id).Error)
	assert.Equal(t, database.PdfStatusPending, stored.PdfStatus)

	key := fmt.Sprintf("exported-cvs/%d/%d/abc.pdf", userID, id)
	require.NoError(t, env.db.Model(&stored).Updates(map[string]any{"pdf_key": key, "pdf_status": database.PdfStatusCompleted}).Error)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d/download-link", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, containsAll(w.Body.String(), key, "attachment", "backend-cv.pdf"), w.Body.String())
}

func TestCVHandler_ExportEnqueueFailureRestoresStatus(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "CV"})
	env.queue.err = fmt.Errorf("redis down")

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/export", id), token, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var stored database.CV
	require.NoError(t, env.db.First(&stored, id).Error)
	assert.Equal(t, "", stored.PdfStatus)
}

func TestCVHandler_DeleteRemovesExportedPDFs(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "CV"})

	w := env.do(t, http.MethodDelete, fmt.Sprintf("/v1/cvs/%d", id), token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{fmt.Sprintf("exported-cvs/%d/%d/", userID, id)}, env.storage.prefixes)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d", id), token, nil).Code)
}

func TestCVHandler_GenerateCoverLetter(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "CV", "full_name": "Alice Doe", "summary": "Go developer"})

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/generate-cover-letter", id), token, map[string]any{
		"job_title":       "Backend Engineer",
		"job_description": "Build Go services",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	letter := decode[database.AICoverLetter](t, w)
	require.NotNil(t, letter.CVID)
	assert.Equal(t, id, *letter.CVID)
	assert.Contains(t, letter.GeneratedLetter, "Backend Engineer")
}

func TestSectionHandler_PatchKeepsFields(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "CV"})

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/experiences", id), token, map[string]any{
		"job_title": "Engineer", "company": "Acme", "is_current": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemID := decode[idBody](t, w).ID

	w = env.do(t, http.MethodPatch, fmt.Sprintf("/v1/cvs/%d/experiences/%d", id, itemID), token, map[string]any{"location": "Berlin"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[database.Experience](t, w)
	assert.Equal(t, itemID, got.ID)
	assert.Equal(t, "Engineer", got.JobTitle)
	assert.Equal(t, "Acme", got.Company)
	assert.Equal(t, "Berlin", got.Location)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d/experiences", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]database.Experience](t, w), 1)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/v1/cvs/%d/experiences/%d", id, itemID), token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d/experiences/%d", id, itemID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSectionHandler_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "CV"})

	cases := []struct {
		name string
		path string
		body map[string]any
	}{
		{"missing required field", "skills", map[string]any{"level": "expert"}},
		{"unknown skill level", "skills", map[string]any{"name": "Go", "level": "guru"}},
		{"unknown proficiency", "languages", map[string]any{"name": "German", "proficiency": "perfect"}},
		{"end before start", "experiences", map[string]any{
			"job_title": "Engineer", "company": "Acme",
			"start_date": "2022-01-01T00:00:00Z", "end_date": "2021-01-01T00:00:00Z",
		}},
		{"end before start as plain dates", "educations", map[string]any{
			"degree": "BSc", "institution": "MIT",
			"start_date": "2019-09-01", "end_date": "2019-06-30",
		}},
		{"malformed date", "experiences", map[string]any{
			"job_title": "Engineer", "company": "Acme", "start_date": "01/09/2019", "is_current": true,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/%s", id, tc.path), token, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestSectionHandler_AcceptsPlainDates(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "alice")
	id := createCV(t, env, token, map[string]any{"title": "CV"})

	w := env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/experiences", id), token, map[string]any{
		"job_title": "Engineer", "company": "Acme", "start_date": "2020-01-01", "is_current": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"start_date":"2020-01-01"`)

	w = env.do(t, http.MethodPost, fmt.Sprintf("/v1/cvs/%d/certifications", id), token, map[string]any{
		"name": "CKA", "issuer": "CNCF", "start_date": "2021-03-15", "end_date": "2024-03-15",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemID := decode[idBody](t, w).ID

	w = env.do(t, http.MethodGet, fmt.Sprintf("/v1/cvs/%d/certifications/%d", id, itemID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[database.Certification](t, w)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "2024-03-15", got.EndDate.String())
}
