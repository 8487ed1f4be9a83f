// Package flight exposes the server over Arrow Flight: generic actions,
// bulk reads, bulk writes and dataset listing.
package flight

import (
	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/go-logr/logr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mosaicod/internal/api/actions"
	"mosaicod/internal/application/services"
	"mosaicod/internal/infrastructure/telemetry"
)

var _ arrowflight.FlightServer = (*Service)(nil)

// Deps are the collaborators of the Flight service
type Deps struct {
	Catalog   *actions.Catalog
	Resources *services.ResourceService
	Query     *services.QueryResolver
	Ingest    *services.IngestService
	Payloads  *services.PayloadStore
	Telemetry *telemetry.Instruments
}

// Service implements the Arrow Flight service
type Service struct {
	arrowflight.BaseFlightServer

	catalog   *actions.Catalog
	resources *services.ResourceService
	query     *services.QueryResolver
	ingest    *services.IngestService
	payloads  *services.PayloadStore
	telemetry *telemetry.Instruments
	logger    logr.Logger
}

// NewService creates the Flight service
func NewService(deps Deps, logger logr.Logger) *Service {
	tel := deps.Telemetry
	if tel == nil {
		tel = telemetry.Noop()
	}
	return &Service{
		catalog:   deps.Catalog,
		resources: deps.Resources,
		query:     deps.Query,
		ingest:    deps.Ingest,
		payloads:  deps.Payloads,
		telemetry: tel,
		logger:    logger.WithName("flight"),
	}
}

// Handshake is not supported, the server has no authentication
func (s *Service) Handshake(arrowflight.FlightService_HandshakeServer) error {
	return status.Error(codes.Unimplemented, "handshake is not supported")
}

// fail logs a domain error with the request that caused it and maps it to a status
func (s *Service) fail(method string, err error, keysAndValues ...interface{}) error {
	code := Code(err)
	kv := append([]interface{}{"method", method, "code", code.String()}, keysAndValues...)
	if isClientError(code) {
		s.logger.V(1).Info("request rejected", append(kv, "error", err.Error())...)
	} else {
		s.logger.Error(err, "request failed", kv...)
	}
	return ToStatus(err)
}

// encodingError logs a failure to put a message on the wire
func (s *Service) encodingError(method string, err error, keysAndValues ...interface{}) error {
	s.logger.Error(err, "flight encoding error", append([]interface{}{"method", method}, keysAndValues...)...)
	return err
}
