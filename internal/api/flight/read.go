package flight

import (
	"encoding/json"
	"strings"

	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"mosaicod/internal/api/actions"
	"mosaicod/internal/application/services"
	"mosaicod/internal/domain/ports"
)

// DoGet streams the chunks selected by a query ticket. Every topic starts with
// a header message, followed by one message per chunk in commit order.
func (s *Service) DoGet(ticket *arrowflight.Ticket, stream arrowflight.FlightService_DoGetServer) (err error) {
	ctx, end := s.telemetry.Track(stream.Context(), "do_get")
	defer func() { end(err) }()

	req, err := s.catalog.Decode(actions.ActionQuery, ticket.GetTicket())
	if err != nil {
		return s.fail("do_get", err, "ticket", string(ticket.GetTicket()))
	}
	query := req.Value.(actions.QueryRequest)

	reads, err := s.query.ResolveReads(ctx, query.Specs())
	if err != nil {
		return s.fail("do_get", err, "ticket", string(ticket.GetTicket()))
	}

	for _, read := range reads {
		if err := s.sendTopic(stream, read); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) sendTopic(stream arrowflight.FlightService_DoGetServer, read services.TopicRead) error {
	ctx := stream.Context()
	name := read.Locator.Name()

	header, err := json.Marshal(TopicHeader{
		Sequence:       read.Locator.Sequence().Name(),
		Locator:        name,
		TimestampRange: read.Locator.Range,
		ChunksNumber:   int64(len(read.Chunks)),
	})
	if err != nil {
		return s.encodingError("do_get", err, "locator", name)
	}
	if err := stream.Send(&arrowflight.FlightData{AppMetadata: header}); err != nil {
		return s.encodingError("do_get", err, "locator", name)
	}

	for _, chunk := range read.Chunks {
		if err := ctx.Err(); err != nil {
			return ToStatus(err)
		}
		payload, err := s.payloads.Read(ctx, chunk)
		if err != nil {
			return s.fail("do_get", err, "locator", name, "chunk_index", chunk.Index)
		}
		frame, err := json.Marshal(ChunkFrame{Locator: name, ChunkIndex: chunk.Index, TimestampRange: chunk.Range})
		if err != nil {
			return s.encodingError("do_get", err, "locator", name)
		}
		if err := stream.Send(&arrowflight.FlightData{AppMetadata: frame, DataBody: payload}); err != nil {
			return s.encodingError("do_get", err, "locator", name, "chunk_index", chunk.Index)
		}
		s.telemetry.ChunkRead(ctx, name)
	}
	return nil
}

// ListFlights describes one flight per sequence. A non-empty criteria
// expression restricts the listing to sequences with that name prefix.
func (s *Service) ListFlights(criteria *arrowflight.Criteria, stream arrowflight.FlightService_ListFlightsServer) error {
	ctx := stream.Context()
	prefix := string(criteria.GetExpression())

	seqs, err := s.resources.ListSequences(ctx)
	if err != nil {
		return s.fail("list_flights", err)
	}
	for _, seq := range seqs {
		if !strings.HasPrefix(seq.Name(), prefix) {
			continue
		}
		info, err := s.sequenceInfo(ctx, seq.Name())
		if errors.Is(err, ports.ErrNotFound) {
			// deleted while listing
			continue
		}
		if err != nil {
			return s.fail("list_flights", err, "sequence", seq.Name())
		}
		if err := stream.Send(info); err != nil {
			return s.encodingError("list_flights", err, "sequence", seq.Name())
		}
	}
	return nil
}

func queryTicket(sequence, topic string) ([]byte, error) {
	return json.Marshal(actions.QueryRequest{Items: []actions.QueryItem{{Sequence: sequence, Topic: topic}}})
}

func (s *Service) flightInfo(desc *arrowflight.FlightDescriptor, ticket []byte, records, bytes int64) *arrowflight.FlightInfo {
	return &arrowflight.FlightInfo{
		FlightDescriptor: desc,
		Endpoint:         []*arrowflight.FlightEndpoint{{Ticket: &arrowflight.Ticket{Ticket: ticket}}},
		TotalRecords:     records,
		TotalBytes:       bytes,
		Ordered:          true,
	}
}

// unsupportedDescriptor rejects descriptors that do not name a resource
func unsupportedDescriptor(desc *arrowflight.FlightDescriptor) error {
	return errors.Wrapf(ports.ErrInvalidInput, "unsupported flight descriptor type %s", desc.GetType())
}

// descriptorAttr labels spans with the descriptor path
func descriptorAttr(desc *arrowflight.FlightDescriptor) attribute.KeyValue {
	return attribute.String("descriptor", strings.Join(desc.GetPath(), "/"))
}
