package flight

import (
	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"

	"mosaicod/internal/api/actions"
)

// DoAction runs a catalog action and streams one Result per response envelope
func (s *Service) DoAction(action *arrowflight.Action, stream arrowflight.FlightService_DoActionServer) error {
	err := s.catalog.Dispatch(stream.Context(), action.GetType(), action.GetBody(), func(env actions.Envelope) error {
		raw, err := env.Bytes()
		if err != nil {
			return s.encodingError("do_action", err, "action", action.GetType())
		}
		if err := stream.Send(&arrowflight.Result{Body: raw}); err != nil {
			return s.encodingError("do_action", err, "action", action.GetType())
		}
		return nil
	})
	if err != nil {
		return s.fail("do_action", err, "action", action.GetType(), "body", string(action.GetBody()))
	}
	return nil
}

// ListActions enumerates the catalog
func (s *Service) ListActions(_ *arrowflight.Empty, stream arrowflight.FlightService_ListActionsServer) error {
	for _, d := range s.catalog.Actions() {
		if err := stream.Send(&arrowflight.ActionType{Type: d.Name, Description: d.Description}); err != nil {
			return s.encodingError("list_actions", err)
		}
	}
	return nil
}
