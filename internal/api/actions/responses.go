package actions

import (
	"time"

	"mosaicod/internal/domain/models"
)

// ResourceKey answers creations and deletions
type ResourceKey struct {
	Key string `json:"key"`
}

// TopicSystemInfo answers topic_system_info
type TopicSystemInfo struct {
	ChunksNumber    int64  `json:"chunks_number"`
	TotalSizeBytes  int64  `json:"total_size_bytes"`
	IsLocked        bool   `json:"is_locked"`
	CreatedDatetime string `json:"created_datetime"`
}

// NewTopicSystemInfo converts the domain snapshot
func NewTopicSystemInfo(info models.TopicSystemInfo) TopicSystemInfo {
	return TopicSystemInfo{
		ChunksNumber:    info.ChunksNumber,
		TotalSizeBytes:  info.TotalSizeBytes,
		IsLocked:        info.IsLocked,
		CreatedDatetime: formatTime(info.CreatedAt),
	}
}

// SequenceSystemInfo answers sequence_system_info
type SequenceSystemInfo struct {
	TotalSizeBytes  int64  `json:"total_size_bytes"`
	IsLocked        bool   `json:"is_locked"`
	CreatedDatetime string `json:"created_datetime"`
}

// NewSequenceSystemInfo converts the domain snapshot
func NewSequenceSystemInfo(info models.SequenceSystemInfo) SequenceSystemInfo {
	return SequenceSystemInfo{
		TotalSizeBytes:  info.TotalSizeBytes,
		IsLocked:        info.IsLocked,
		CreatedDatetime: formatTime(info.CreatedAt),
	}
}

// QueryTopic is a selected topic, the range is omitted when the query gave none
type QueryTopic struct {
	Locator        string                 `json:"locator"`
	TimestampRange *models.TimestampRange `json:"timestamp_range,omitempty"`
}

// QueryGroup is a sequence with its selected topics
type QueryGroup struct {
	Sequence string       `json:"sequence"`
	Topics   []QueryTopic `json:"topics"`
}

// QueryResponse is one page of query results
type QueryResponse struct {
	Items []QueryGroup `json:"items"`
}

// NewQueryGroups converts a resolved group set keeping its order
func NewQueryGroups(set *models.SequenceTopicGroupSet) []QueryGroup {
	groups := make([]QueryGroup, 0, set.Len())
	for _, g := range set.Groups() {
		qg := QueryGroup{Sequence: g.Sequence.Name(), Topics: make([]QueryTopic, 0, len(g.Topics))}
		for _, t := range g.Topics {
			qg.Topics = append(qg.Topics, QueryTopic{Locator: t.Name(), TimestampRange: t.Range})
		}
		groups = append(groups, qg)
	}
	return groups
}

// Notify is one entry of notify_list
type Notify struct {
	Name            string `json:"name"`
	NotifyType      string `json:"notify_type"`
	Msg             string `json:"msg"`
	CreatedDatetime string `json:"created_datetime"`
}

// NotifyList answers notify_list
type NotifyList struct {
	Notifies []Notify `json:"notifies"`
}

// NewNotifyList converts notifies keeping their order
func NewNotifyList(notifies []models.Notify) NotifyList {
	out := NotifyList{Notifies: make([]Notify, 0, len(notifies))}
	for _, n := range notifies {
		var msg string
		if n.Msg != nil {
			msg = *n.Msg
		}
		out.Notifies = append(out.Notifies, Notify{
			Name:            n.Target,
			NotifyType:      string(n.Type),
			Msg:             msg,
			CreatedDatetime: formatTime(n.CreatedAt),
		})
	}
	return out
}

// LayerName answers layer_create
type LayerName struct {
	Name string `json:"name"`
}

// Layer is one entry of layer_list
type Layer struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LayerList answers layer_list
type LayerList struct {
	Layers []Layer `json:"layers"`
}

// NewLayerList converts layers keeping their order
func NewLayerList(layers []models.Layer) LayerList {
	out := LayerList{Layers: make([]Layer, 0, len(layers))}
	for _, l := range layers {
		out.Layers = append(out.Layers, Layer{Name: l.Name, Description: l.Description})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
