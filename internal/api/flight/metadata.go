package flight

import (
	"encoding/json"

	"github.com/pkg/errors"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// PutCommand is the CMD descriptor of a bulk write
type PutCommand struct {
	TopicKey string `json:"topic_key"`
}

// ChunkMetadata is the app_metadata of a bulk write message
type ChunkMetadata struct {
	TimestampRange *models.TimestampRange `json:"timestamp_range"`
}

// PutAck is the metadata of the PutResult sent for every committed chunk
type PutAck struct {
	ChunkIndex     int64 `json:"chunk_index"`
	ChunksNumber   int64 `json:"chunks_number"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}

// TopicHeader precedes the chunks of a topic in a bulk read
type TopicHeader struct {
	Sequence       string                 `json:"sequence"`
	Locator        string                 `json:"locator"`
	TimestampRange *models.TimestampRange `json:"timestamp_range,omitempty"`
	ChunksNumber   int64                  `json:"chunks_number"`
}

// ChunkFrame describes the chunk carried by a bulk read message
type ChunkFrame struct {
	Locator        string                `json:"locator"`
	ChunkIndex     int64                 `json:"chunk_index"`
	TimestampRange models.TimestampRange `json:"timestamp_range"`
}

func decodeChunkMetadata(raw []byte) (models.TimestampRange, error) {
	var md ChunkMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return models.TimestampRange{}, errors.Wrapf(ports.ErrMalformedBody, "chunk metadata: %v", err)
	}
	if md.TimestampRange == nil {
		return models.TimestampRange{}, errors.Wrap(ports.ErrMalformedBody, "chunk metadata: timestamp_range is required")
	}
	return *md.TimestampRange, nil
}

func decodePutCommand(raw []byte) (PutCommand, error) {
	var cmd PutCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return PutCommand{}, errors.Wrapf(ports.ErrMalformedBody, "put command: %v", err)
	}
	if cmd.TopicKey == "" {
		return PutCommand{}, errors.Wrap(ports.ErrMalformedBody, "put command: topic_key is required")
	}
	return cmd, nil
}
