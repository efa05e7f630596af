package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsNoSuchKey(t *testing.T) {
	wrapped := fmt.Errorf("get object: %w", minio.ErrorResponse{Code: "NoSuchKey"})
	assert.True(t, IsNoSuchKey(wrapped))
	assert.True(t, IsNoSuchKey(errors.New("The specified key does not exist.")))
	assert.False(t, IsNoSuchKey(errors.New("connection refused")))
	assert.False(t, IsNoSuchKey(nil))
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "uploaded-cvs/3/abc.pdf", UploadedCVKey(3, "abc", ".pdf"))
	assert.Equal(t, "exported-cvs/3/9/xyz.pdf", ExportedCVKey(3, 9, "xyz"))
	assert.Equal(t, "exported-cvs/3/9/", ExportedCVPrefix(3, 9))
	assert.Equal(t, "thumbnails/template/4/preview.jpg", TemplatePreviewKey(4))
}

func TestParseBucketLookup(t *testing.T) {
	lookup, err := parseBucketLookup(" Path ")
	assert.NoError(t, err)
	assert.Equal(t, minio.BucketLookupPath, lookup)

	_, err = parseBucketLookup("virtual")
	assert.Error(t, err)
}
