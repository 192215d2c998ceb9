package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vodarchiver/archiver/pipeline"
	"github.com/vodarchiver/archiver/xerrors"
)

func TestDownloadToFileReturnsObjectNotFoundOn404(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer svr.Close()

	dir := t.TempDir()
	updates := make(chan pipeline.StatusUpdate, 4)
	err := downloadToFile(context.Background(), svr.Client(), "v1", svr.URL, filepath.Join(dir, "out.bin"), updates)

	require.Error(t, err)
	require.True(t, xerrors.IsPermanent(err))
	var notFound xerrors.ObjectNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDownloadToFileSucceeds(t *testing.T) {
	body := []byte("hello world")
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer svr.Close()

	dir := t.TempDir()
	destPath := filepath.Join(dir, "out.bin")
	updates := make(chan pipeline.StatusUpdate, 4)
	err := downloadToFile(context.Background(), svr.Client(), "v1", svr.URL, destPath, updates)
	require.NoError(t, err)

	got, err := os.ReadFile(destPath)
	require.NoError(t, err)
	require.Equal(t, body, got)
}
