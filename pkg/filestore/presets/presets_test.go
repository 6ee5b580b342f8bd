package presets

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-filestore/pkg/filestore"
	"github.com/tendant/simple-filestore/pkg/filestore/config"
)

func TestNewDevelopment(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dev-data")
	svc, cleanup, err := NewDevelopment(WithDevStorage(dir))
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	ctx := context.Background()
	view, err := svc.UploadFile(ctx, filestore.UploadFileRequest{
		OwnerID:             "dev",
		FileName:            "test.txt",
		DeclaredContentType: "text/plain",
		Visibility:          filestore.VisibilityPrivate,
		Body:                strings.NewReader("Hello Development!"),
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, view.ID.String()))
	require.NoError(t, err, "blob should be on disk")

	cleanup()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "storage dir should be removed after cleanup")
}

func TestNewTesting(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		svc := NewTesting(t)
		page, err := svc.FetchPublicFiles(context.Background(), nil, filestore.DefaultPageRequest())
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("fixtures", func(t *testing.T) {
		svc := NewTesting(t, WithTestFixtures())
		ctx := context.Background()

		public, err := svc.FetchPublicFiles(ctx, nil, filestore.DefaultPageRequest())
		require.NoError(t, err)
		require.Len(t, public.Items, 1)
		assert.Equal(t, "welcome.txt", public.Items[0].FileName)

		mine, err := svc.FetchUserFiles(ctx, TestOwnerID, nil, filestore.DefaultPageRequest())
		require.NoError(t, err)
		assert.Len(t, mine.Items, 2)

		_, rc, err := svc.GetFile(ctx, public.Items[0].ID, "someone-else")
		require.NoError(t, err)
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		assert.Equal(t, "Welcome!", string(data))
	})
}

func TestNewProduction_RejectsMemory(t *testing.T) {
	ctx := context.Background()

	_, _, err := NewProduction(ctx, nil, config.WithDatabase("memory", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_TYPE=postgres")

	_, _, err = NewProduction(ctx, nil,
		config.WithDatabase("postgres", "postgres://localhost/db"),
		config.WithMemoryStorage(),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent storage")
}
