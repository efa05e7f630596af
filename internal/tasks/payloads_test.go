package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCVExportTask(t *testing.T) {
	task, err := NewCVExportTask(42, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, TypeCVExportPDF, task.Type())
	assert.JSONEq(t, `{"cv_id":42,"correlation_id":"corr-1"}`, string(task.Payload()))
}

func TestNewTemplatePreviewTask(t *testing.T) {
	task, err := NewTemplatePreviewTask(7, "")
	require.NoError(t, err)
	assert.Equal(t, TypeTemplatePreview, task.Type())

	var payload TemplatePreviewPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, uint(7), payload.TemplateID)
}
