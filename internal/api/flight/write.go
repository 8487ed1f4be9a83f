package flight

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/pkg/errors"

	"mosaicod/internal/application/services"
	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// DoPut ingests chunks into one topic. The first message carries the descriptor:
// CMD {"topic_key": ...} or PATH [seq, topic...]. Every message with a body is a
// chunk whose app_metadata holds its timestamp range; each committed chunk is
// acknowledged with a PutResult. The topic stays locked until the stream ends.
func (s *Service) DoPut(stream arrowflight.FlightService_DoPutServer) error {
	ctx := stream.Context()

	msg, err := stream.Recv()
	if err == io.EOF {
		return s.fail("do_put", errors.Wrap(ports.ErrInvalidInput, "empty put stream"))
	}
	if err != nil {
		return ToStatus(err)
	}

	desc := msg.GetFlightDescriptor()
	if desc == nil {
		return s.fail("do_put", errors.Wrap(ports.ErrInvalidInput, "the first message must carry a flight descriptor"))
	}
	upload, err := s.beginUpload(ctx, desc)
	if err != nil {
		return s.fail("do_put", err, "descriptor", describe(desc))
	}

	cause := s.ingestStream(ctx, stream, upload, msg)

	// the upload is closed even when the client is gone
	if err := upload.Close(context.WithoutCancel(ctx), cause); err != nil {
		s.logger.Error(err, "failed to close upload", "topic", upload.Topic().Name())
	}
	if cause != nil {
		return s.fail("do_put", cause, "topic", upload.Topic().Name())
	}
	return nil
}

func (s *Service) ingestStream(ctx context.Context, stream arrowflight.FlightService_DoPutServer, upload *services.Upload, msg *arrowflight.FlightData) error {
	for {
		if len(msg.GetDataBody()) > 0 || len(msg.GetAppMetadata()) > 0 {
			if err := s.ingestChunk(ctx, stream, upload, msg); err != nil {
				return err
			}
		}

		var err error
		msg, err = stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "put stream interrupted")
		}
	}
}

func (s *Service) ingestChunk(ctx context.Context, stream arrowflight.FlightService_DoPutServer, upload *services.Upload, msg *arrowflight.FlightData) error {
	r, err := decodeChunkMetadata(msg.GetAppMetadata())
	if err != nil {
		return err
	}
	chunk, err := upload.Append(ctx, r, msg.GetDataBody())
	if err != nil {
		return err
	}

	topic := upload.Topic()
	ack, err := json.Marshal(PutAck{
		ChunkIndex:     chunk.Index,
		ChunksNumber:   topic.ChunksNumber,
		TotalSizeBytes: topic.TotalSizeBytes,
	})
	if err != nil {
		return s.encodingError("do_put", err, "topic", topic.Name())
	}
	if err := stream.Send(&arrowflight.PutResult{AppMetadata: ack}); err != nil {
		return s.encodingError("do_put", err, "topic", topic.Name(), "chunk_index", chunk.Index)
	}
	return nil
}

func (s *Service) beginUpload(ctx context.Context, desc *arrowflight.FlightDescriptor) (*services.Upload, error) {
	switch desc.GetType() {
	case arrowflight.DescriptorCMD:
		cmd, err := decodePutCommand(desc.GetCmd())
		if err != nil {
			return nil, err
		}
		return s.ingest.BeginByKey(ctx, cmd.TopicKey)
	case arrowflight.DescriptorPATH:
		if len(desc.GetPath()) < 2 {
			return nil, errors.Wrap(ports.ErrInvalidName, "a put path needs a sequence and a topic")
		}
		return s.ingest.BeginByName(ctx, strings.Join(desc.GetPath(), models.LocatorSeparator))
	default:
		return nil, unsupportedDescriptor(desc)
	}
}

func describe(desc *arrowflight.FlightDescriptor) string {
	if desc.GetType() == arrowflight.DescriptorCMD {
		return string(desc.GetCmd())
	}
	return strings.Join(desc.GetPath(), models.LocatorSeparator)
}
