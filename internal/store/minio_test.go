package store

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestMinioErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, true},
		{"bare 404", minio.ErrorResponse{StatusCode: http.StatusNotFound}, true},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, false},
		{"transport failure", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := minioError("get", AvatarKey("acct-1"), tt.err)
			if tt.notFound {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			assert.NotErrorIs(t, err, ErrNotFound)
			assert.Contains(t, err.Error(), tt.err.Error())
			assert.Contains(t, err.Error(), "avatars/acct-1")
		})
	}
}

func TestAvatarKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "avatars/665f1c2ab9e3d4a1c0ffee01", AvatarKey("665f1c2ab9e3d4a1c0ffee01"))
}
