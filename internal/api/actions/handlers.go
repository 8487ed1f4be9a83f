package actions

import (
	"context"

	"github.com/pkg/errors"

	"mosaicod/internal/application/services"
	"mosaicod/internal/domain/ports"
)

// Action names
const (
	ActionSequenceCreate     = "sequence_create"
	ActionSequenceSystemInfo = "sequence_system_info"
	ActionSequenceDelete     = "sequence_delete"
	ActionTopicCreate        = "topic_create"
	ActionTopicSystemInfo    = "topic_system_info"
	ActionTopicDelete        = "topic_delete"
	ActionQuery              = "query"
	ActionNotifyCreate       = "notify_create"
	ActionNotifyList         = "notify_list"
	ActionLayerCreate        = "layer_create"
	ActionLayerList          = "layer_list"
)

// DefaultQueryPageSize is the number of groups per query envelope when unset
const DefaultQueryPageSize = 100

// Services are the domain operations behind the catalog
type Services struct {
	Resources *services.ResourceService
	Query     *services.QueryResolver
	Notify    *services.NotifyService

	// QueryPageSize is the number of sequence groups per query envelope
	QueryPageSize int
}

// NewDefaultCatalog registers every known action
func NewDefaultCatalog(svc Services, opts ...Option) (*Catalog, error) {
	if svc.QueryPageSize <= 0 {
		svc.QueryPageSize = DefaultQueryPageSize
	}
	c := NewCatalog(opts...)
	h := handlers{svc}

	for _, reg := range []func() error{
		func() error {
			return Register(c, ActionSequenceCreate, "Create a sequence", sequenceCreateSchema, h.sequenceCreate)
		},
		func() error {
			return Register(c, ActionSequenceSystemInfo, "Report sequence size and lock state", nameSchema, h.sequenceSystemInfo)
		},
		func() error {
			return Register(c, ActionSequenceDelete, "Delete a sequence with all its data", deleteSchema, h.sequenceDelete)
		},
		func() error {
			return Register(c, ActionTopicCreate, "Create a topic inside a sequence", topicCreateSchema, h.topicCreate)
		},
		func() error {
			return Register(c, ActionTopicSystemInfo, "Report topic chunks, size and lock state", nameSchema, h.topicSystemInfo)
		},
		func() error {
			return Register(c, ActionTopicDelete, "Delete a topic with all its data", deleteSchema, h.topicDelete)
		},
		func() error {
			return Register(c, ActionQuery, "Resolve sequences and topics grouped by sequence", querySchema, h.query)
		},
		func() error {
			return Register(c, ActionNotifyCreate, "Record a notify", notifyCreateSchema, h.notifyCreate)
		},
		func() error {
			return Register(c, ActionNotifyList, "List notifies, optionally for one resource", notifyListSchema, h.notifyList)
		},
		func() error {
			return Register(c, ActionLayerCreate, "Create a processing layer", layerCreateSchema, h.layerCreate)
		},
		func() error {
			return Register(c, ActionLayerList, "List processing layers", layerListSchema, h.layerList)
		},
	} {
		if err := reg(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

type handlers struct {
	svc Services
}

func (h handlers) sequenceCreate(ctx context.Context, req SequenceCreateRequest, emit Emit) error {
	id, err := h.svc.Resources.CreateSequence(ctx, req.Name, req.UserMetadata)
	if err != nil {
		return err
	}
	return emit(ResourceKey{Key: id.String()})
}

func (h handlers) sequenceSystemInfo(ctx context.Context, req NameRequest, emit Emit) error {
	info, err := h.svc.Resources.SequenceSystemInfo(ctx, req.Name)
	if err != nil {
		return err
	}
	return emit(NewSequenceSystemInfo(info))
}

func (h handlers) sequenceDelete(ctx context.Context, req DeleteRequest, emit Emit) error {
	id, err := h.svc.Resources.DeleteSequence(ctx, req.Name, req.Token())
	if err != nil {
		return err
	}
	return emit(ResourceKey{Key: id.String()})
}

func (h handlers) topicCreate(ctx context.Context, req TopicCreateRequest, emit Emit) error {
	id, err := h.svc.Resources.CreateTopic(ctx, req.SequenceKey, req.Name, req.SerializationFormat, req.OntologyTag, req.UserMetadata)
	if err != nil {
		return err
	}
	return emit(ResourceKey{Key: id.String()})
}

func (h handlers) topicSystemInfo(ctx context.Context, req NameRequest, emit Emit) error {
	info, err := h.svc.Resources.TopicSystemInfo(ctx, req.Name)
	if err != nil {
		return err
	}
	return emit(NewTopicSystemInfo(info))
}

func (h handlers) topicDelete(ctx context.Context, req DeleteRequest, emit Emit) error {
	id, err := h.svc.Resources.DeleteTopic(ctx, req.Name, req.Token())
	if err != nil {
		return err
	}
	return emit(ResourceKey{Key: id.String()})
}

// query resolves every item before the first envelope is sent, so a failing
// item yields no partial result
func (h handlers) query(ctx context.Context, req QueryRequest, emit Emit) error {
	set, err := h.svc.Query.Resolve(ctx, req.Specs())
	if err != nil {
		return err
	}
	groups := NewQueryGroups(set)
	if len(groups) == 0 {
		return emit(QueryResponse{Items: []QueryGroup{}})
	}
	for start := 0; start < len(groups); start += h.svc.QueryPageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + h.svc.QueryPageSize
		if end > len(groups) {
			end = len(groups)
		}
		if err := emit(QueryResponse{Items: groups[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

func (h handlers) notifyCreate(ctx context.Context, req NotifyCreateRequest, _ Emit) error {
	return h.svc.Notify.Create(ctx, req.Name, req.NotifyType, req.Msg)
}

func (h handlers) notifyList(ctx context.Context, req NotifyListRequest, emit Emit) error {
	notifies, err := h.svc.Notify.List(ctx, req.Name)
	if err != nil {
		return err
	}
	return emit(NewNotifyList(notifies))
}

func (h handlers) layerCreate(ctx context.Context, req LayerCreateRequest, emit Emit) error {
	if err := h.svc.Resources.CreateLayer(ctx, req.Name, req.Description); err != nil {
		return err
	}
	return emit(LayerName{Name: req.Name})
}

func (h handlers) layerList(ctx context.Context, _ LayerListRequest, emit Emit) error {
	layers, err := h.svc.Resources.ListLayers(ctx, ports.EmptyScope{})
	if err != nil {
		return errors.WithMessage(err, "layer_list")
	}
	return emit(NewLayerList(layers))
}
