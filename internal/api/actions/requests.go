package actions

import (
	"encoding/json"
	"strings"

	"mosaicod/internal/application/services"
	"mosaicod/internal/domain/models"
)

// SequenceCreateRequest is the body of sequence_create
type SequenceCreateRequest struct {
	Name         string          `json:"name"`
	UserMetadata json.RawMessage `json:"user_metadata,omitempty"`
}

// TopicCreateRequest is the body of topic_create
type TopicCreateRequest struct {
	Name                string          `json:"name"`
	SequenceKey         string          `json:"sequence_key"`
	SerializationFormat string          `json:"serialization_format"`
	OntologyTag         string          `json:"ontology_tag"`
	UserMetadata        json.RawMessage `json:"user_metadata,omitempty"`
}

// NameRequest carries a resource name
type NameRequest struct {
	Name string `json:"name"`
}

// DeleteRequest is the body of the destructive actions
type DeleteRequest struct {
	Name          string `json:"name"`
	AllowDataLoss bool   `json:"allow_data_loss"`
}

// Token returns the data loss acknowledgement, nil unless the caller opted in
func (r DeleteRequest) Token() models.DataLossToken {
	if !r.AllowDataLoss {
		return nil
	}
	return models.AllowDataLoss()
}

// QueryItem selects a sequence, optionally one of its topics and a time window
type QueryItem struct {
	Sequence       string                 `json:"sequence"`
	Topic          string                 `json:"topic,omitempty"`
	TimestampRange *models.TimestampRange `json:"timestamp_range,omitempty"`
}

// QueryRequest is the body of query and the ticket of bulk reads
type QueryRequest struct {
	Items []QueryItem `json:"items"`
}

// Specs converts the items for the resolver. Topics are paths relative to
// their sequence.
func (r QueryRequest) Specs() []services.QuerySpec {
	specs := make([]services.QuerySpec, 0, len(r.Items))
	for _, it := range r.Items {
		seq := strings.TrimPrefix(it.Sequence, models.LocatorSeparator)
		topic := strings.TrimPrefix(it.Topic, models.LocatorSeparator)
		specs = append(specs, services.QuerySpec{
			Sequence: seq,
			Topic:    topic,
			Range:    it.TimestampRange,
		})
	}
	return specs
}

// NotifyCreateRequest is the body of notify_create
type NotifyCreateRequest struct {
	Name       string `json:"name"`
	NotifyType string `json:"notify_type"`
	Msg        string `json:"msg,omitempty"`
}

// NotifyListRequest is the body of notify_list, an empty name lists everything
type NotifyListRequest struct {
	Name string `json:"name,omitempty"`
}

// LayerCreateRequest is the body of layer_create
type LayerCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// LayerListRequest is the body of layer_list
type LayerListRequest struct{}
