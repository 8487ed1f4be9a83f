package chunkstore

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
	badgerstore "mosaicod/internal/infrastructure/chunkstore/badger"
	filestore "mosaicod/internal/infrastructure/chunkstore/file"
	memstore "mosaicod/internal/infrastructure/chunkstore/mem"
	s3store "mosaicod/internal/infrastructure/chunkstore/s3"
)

// StoreType selects the payload backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeS3     StoreType = "s3"
	StoreTypeBadger StoreType = "badger"
)

// Config configures the chunk store
type Config struct {
	Type  StoreType `yaml:"type" env:"STORE_TYPE" env-default:"memory"`
	Codec CodecKind `yaml:"codec" env:"STORE_CODEC" env-default:"zstd"`

	File struct {
		Dir string `yaml:"dir" env:"STORE_FILE_DIR" env-default:"data/chunks"`
	} `yaml:"file"`
	S3     s3store.Config     `yaml:"s3" env-prefix:"STORE_"`
	Badger badgerstore.Config `yaml:"badger" env-prefix:"STORE_"`
}

// Validate checks the settings of the selected backend
func (c Config) Validate() error {
	if _, ok := codecTags[c.Codec]; !ok && c.Codec != "" {
		return fmt.Errorf("unsupported chunk codec: %s", c.Codec)
	}
	switch c.Type {
	case StoreTypeMemory:
	case StoreTypeFile:
		if c.File.Dir == "" {
			return errors.New("store.file.dir is required for the file store")
		}
	case StoreTypeS3:
		if c.S3.Bucket == "" {
			return errors.New("store.s3.bucket is required for the s3 store")
		}
	case StoreTypeBadger:
		if c.Badger.Dir == "" && !c.Badger.InMemory {
			return errors.New("store.badger.dir is required for the badger store")
		}
	default:
		return fmt.Errorf("unsupported store type: %s", c.Type)
	}
	return nil
}

// New builds the configured store
func New(ctx context.Context, c Config, logger logr.Logger) (ports.ChunkStore, error) {
	logger.Info("opening chunk store", "type", c.Type, "codec", c.Codec)
	switch c.Type {
	case StoreTypeMemory:
		return memstore.NewStore(), nil
	case StoreTypeFile:
		return filestore.NewStore(c.File.Dir)
	case StoreTypeS3:
		return s3store.NewStore(ctx, c.S3)
	case StoreTypeBadger:
		return badgerstore.NewStore(c.Badger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", c.Type)
	}
}
