package flight

import (
	"context"
	"strings"

	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mosaicod/internal/domain/models"
	"mosaicod/internal/domain/ports"
)

// GetFlightInfo describes a sequence (PATH [seq]) or a topic (PATH [seq, topic...])
func (s *Service) GetFlightInfo(ctx context.Context, desc *arrowflight.FlightDescriptor) (info *arrowflight.FlightInfo, err error) {
	ctx, end := s.telemetry.Track(ctx, "get_flight_info", descriptorAttr(desc))
	defer func() { end(err) }()

	if desc.GetType() != arrowflight.DescriptorPATH || len(desc.GetPath()) == 0 {
		return nil, s.fail("get_flight_info", unsupportedDescriptor(desc))
	}
	path := desc.GetPath()
	if len(path) == 1 {
		info, err = s.sequenceInfo(ctx, path[0])
	} else {
		info, err = s.topicInfo(ctx, strings.Join(path, models.LocatorSeparator))
	}
	if err != nil {
		return nil, s.fail("get_flight_info", err, "path", strings.Join(path, models.LocatorSeparator))
	}
	return info, nil
}

func (s *Service) sequenceInfo(ctx context.Context, name string) (*arrowflight.FlightInfo, error) {
	seq, err := s.resources.GetSequence(ctx, name)
	if err != nil {
		return nil, err
	}
	topics, err := s.resources.ListTopics(ctx, *seq)
	if err != nil {
		return nil, err
	}
	records, size := int64(0), seq.MetadataSize()
	for _, t := range topics {
		records += t.ChunksNumber
		size += t.TotalSizeBytes
	}
	ticket, err := queryTicket(seq.Name(), "")
	if err != nil {
		return nil, err
	}
	desc := &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorPATH, Path: []string{seq.Name()}}
	return s.flightInfo(desc, ticket, records, size), nil
}

func (s *Service) topicInfo(ctx context.Context, name string) (*arrowflight.FlightInfo, error) {
	topic, err := s.resources.GetTopic(ctx, name)
	if err != nil {
		return nil, err
	}
	ticket, err := queryTicket(topic.Locator.Sequence().Name(), topic.Locator.Path())
	if err != nil {
		return nil, err
	}
	path := append([]string{topic.Locator.Sequence().Name()}, strings.Split(topic.Locator.Path(), models.LocatorSeparator)...)
	desc := &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorPATH, Path: path}
	return s.flightInfo(desc, ticket, topic.ChunksNumber, topic.TotalSizeBytes), nil
}

// PollFlightInfo is not supported, flights are always complete
func (s *Service) PollFlightInfo(context.Context, *arrowflight.FlightDescriptor) (*arrowflight.PollInfo, error) {
	return nil, ToStatus(errors.Wrap(ports.ErrUnimplemented, "poll_flight_info"))
}

// GetSchema is not supported, payloads are opaque
func (s *Service) GetSchema(context.Context, *arrowflight.FlightDescriptor) (*arrowflight.SchemaResult, error) {
	return nil, ToStatus(errors.Wrap(ports.ErrUnimplemented, "get_schema"))
}

// DoExchange is not supported
func (s *Service) DoExchange(arrowflight.FlightService_DoExchangeServer) error {
	return status.Error(codes.Unimplemented, "do_exchange is not supported")
}
