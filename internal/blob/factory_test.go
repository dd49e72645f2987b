package blob

import (
	"context"
	"testing"

	"astrocore/internal/blob/core"
	"astrocore/internal/infra/blob/s3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	fsStore, err := Open(ctx, Config{FSRoot: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, fsStore.Driver())

	mem, err := Open(ctx, Config{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, core.DriverMemory, mem.Driver())

	s3Store, err := Open(ctx, Config{Driver: "s3", S3: s3.Config{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}})
	require.NoError(t, err)
	assert.Equal(t, core.DriverS3, s3Store.Driver())
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, Config{Driver: "gcs"})
	assert.ErrorContains(t, err, "unknown blob driver")

	_, err = Open(ctx, Config{Driver: "s3"})
	assert.ErrorContains(t, err, "bucket required")
}
