// Package blob selects the blob store driver used for backups.
package blob

import (
	"context"
	"fmt"

	"astrocore/internal/blob/core"
	"astrocore/internal/infra/blob/fs"
	"astrocore/internal/infra/blob/memory"
	"astrocore/internal/infra/blob/s3"
)

type (
	// Store is the interface for blob storage backends.
	Store = core.Store
	// Info describes stored blob metadata.
	Info = core.Info
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Driver identifies a blob backend driver.
	Driver = core.Driver
)

// Sentinel errors shared by every driver.
var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)

// Supported drivers.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Config selects and configures a driver.
//
//	ASTROCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	ASTROCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	ASTROCORE_BLOB_S3_*: see s3.Config
type Config struct {
	Driver string    `env:"DRIVER" envDefault:"fs"`
	FSRoot string    `env:"FS_ROOT" envDefault:"./blobdata"`
	S3     s3.Config `envPrefix:"S3_"`
}

// Open constructs the configured blob store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := core.Driver(cfg.Driver)
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case core.DriverS3:
		return s3.New(ctx, cfg.S3)
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
