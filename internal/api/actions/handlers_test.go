package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/application/services"
	"mosaicod/internal/domain/ports"
	"mosaicod/internal/infrastructure/chunkstore"
	memstore "mosaicod/internal/infrastructure/chunkstore/mem"
	memlocks "mosaicod/internal/infrastructure/locks/mem"
	memrepo "mosaicod/internal/infrastructure/repositories/mem"
)

func newTestCatalog(t *testing.T, pageSize int) *Catalog {
	t.Helper()
	repo := memrepo.NewRegistry()
	codec, err := chunkstore.NewCodec(chunkstore.CodecNone)
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	locks := services.NewLockManager(memlocks.NewLocker(), time.Second, logr.Discard())
	payloads := services.NewPayloadStore(memstore.NewStore(), codec)
	notify, err := services.NewNotifyService(repo, logr.Discard())
	require.NoError(t, err)

	c, err := NewDefaultCatalog(Services{
		Resources:     services.NewResourceService(repo, locks, payloads, logr.Discard()),
		Query:         services.NewQueryResolver(repo),
		Notify:        notify,
		QueryPageSize: pageSize,
	})
	require.NoError(t, err)
	return c
}

func call(t *testing.T, c *Catalog, name, body string) ([]Envelope, error) {
	t.Helper()
	var out []Envelope
	err := c.Dispatch(context.Background(), name, []byte(body), func(e Envelope) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

func mustKey(t *testing.T, c *Catalog, name, body string) string {
	t.Helper()
	envs, err := call(t, c, name, body)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	raw, err := envs[0].Bytes()
	require.NoError(t, err)
	action, key, err := DecodeEnvelope[ResourceKey](raw)
	require.NoError(t, err)
	assert.Equal(t, name, action)
	return key.Key
}

func TestDefaultCatalog_ResourceLifecycle(t *testing.T) {
	c := newTestCatalog(t, 0)

	seqKey := mustKey(t, c, ActionSequenceCreate, `{"name":"test_sequence","user_metadata":{"driver":"max"}}`)
	topicKey := mustKey(t, c, ActionTopicCreate, fmt.Sprintf(
		`{"name":"test_sequence/topic1","sequence_key":%q,"serialization_format":"cdr","ontology_tag":"imu"}`, seqKey))
	assert.NotEqual(t, seqKey, topicKey)

	envs, err := call(t, c, ActionTopicSystemInfo, `{"name":"test_sequence/topic1"}`)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	var info TopicSystemInfo
	require.NoError(t, json.Unmarshal(envs[0].Response, &info))
	assert.False(t, info.IsLocked)
	assert.Zero(t, info.ChunksNumber)
	assert.NotEmpty(t, info.CreatedDatetime)

	envs, err = call(t, c, ActionSequenceSystemInfo, `{"name":"test_sequence"}`)
	require.NoError(t, err)
	var seqInfo SequenceSystemInfo
	require.NoError(t, json.Unmarshal(envs[0].Response, &seqInfo))
	assert.Equal(t, int64(len(`{"driver":"max"}`)), seqInfo.TotalSizeBytes)

	_, err = call(t, c, ActionSequenceCreate, `{"name":"test_sequence"}`)
	assert.ErrorIs(t, err, ports.ErrConflict)

	_, err = call(t, c, ActionTopicDelete, `{"name":"test_sequence/topic1","allow_data_loss":false}`)
	assert.ErrorIs(t, err, ports.ErrMalformedBody)
	assert.Equal(t, topicKey, mustKey(t, c, ActionTopicDelete, `{"name":"test_sequence/topic1","allow_data_loss":true}`))
	assert.Equal(t, seqKey, mustKey(t, c, ActionSequenceDelete, `{"name":"test_sequence","allow_data_loss":true}`))
}

func TestDefaultCatalog_QueryPaging(t *testing.T) {
	c := newTestCatalog(t, 2)
	for i := 0; i < 5; i++ {
		mustKey(t, c, ActionSequenceCreate, fmt.Sprintf(`{"name":"seq_%d"}`, i))
	}

	envs, err := call(t, c, ActionQuery, `{"items":[{"sequence":"seq_4"},{"sequence":"seq_0"},{"sequence":"seq_3"},{"sequence":"seq_1"},{"sequence":"seq_2"}]}`)
	require.NoError(t, err)
	require.Len(t, envs, 3)

	var order []string
	for _, e := range envs {
		var page QueryResponse
		require.NoError(t, json.Unmarshal(e.Response, &page))
		for _, g := range page.Items {
			order = append(order, g.Sequence)
		}
	}
	assert.Equal(t, []string{"seq_4", "seq_0", "seq_3", "seq_1", "seq_2"}, order)

	envs, err = call(t, c, ActionQuery, `{"items":[]}`)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.JSONEq(t, `{"items":[]}`, string(envs[0].Response))
}

func TestDefaultCatalog_QueryTopicIsRelativeToSequence(t *testing.T) {
	c := newTestCatalog(t, 0)
	seqKey := mustKey(t, c, ActionSequenceCreate, `{"name":"cam"}`)
	for _, name := range []string{"cam/cam/front", "cam/front"} {
		mustKey(t, c, ActionTopicCreate, fmt.Sprintf(
			`{"name":%q,"sequence_key":%q,"serialization_format":"cdr","ontology_tag":"image"}`, name, seqKey))
	}

	envs, err := call(t, c, ActionQuery, `{"items":[{"sequence":"cam","topic":"cam/front"}]}`)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.JSONEq(t, `{"items":[{"sequence":"cam","topics":[{"locator":"cam/cam/front"}]}]}`, string(envs[0].Response))

	envs, err = call(t, c, ActionQuery, `{"items":[{"sequence":"cam","topic":"front"}]}`)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.JSONEq(t, `{"items":[{"sequence":"cam","topics":[{"locator":"cam/front"}]}]}`, string(envs[0].Response))
}

func TestDefaultCatalog_QueryNotFoundIsWhole(t *testing.T) {
	c := newTestCatalog(t, 1)
	mustKey(t, c, ActionSequenceCreate, `{"name":"real"}`)

	envs, err := call(t, c, ActionQuery, `{"items":[{"sequence":"real"},{"sequence":"ghost"}]}`)
	require.ErrorIs(t, err, ports.ErrNotFound)
	assert.Empty(t, envs, "no partial results")
}

func TestDefaultCatalog_NotifiesAndLayers(t *testing.T) {
	c := newTestCatalog(t, 0)

	envs, err := call(t, c, ActionNotifyCreate, `{"name":"run","notify_type":"error","msg":"lidar offline"}`)
	require.NoError(t, err)
	assert.Empty(t, envs)

	_, err = call(t, c, ActionNotifyCreate, `{"name":"run","notify_type":"gossip"}`)
	assert.ErrorIs(t, err, ports.ErrMalformedBody)

	envs, err = call(t, c, ActionNotifyList, `{"name":"run"}`)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	var list NotifyList
	require.NoError(t, json.Unmarshal(envs[0].Response, &list))
	require.Len(t, list.Notifies, 1)
	assert.Equal(t, "error", list.Notifies[0].NotifyType)
	assert.Equal(t, "lidar offline", list.Notifies[0].Msg)

	_, err = call(t, c, ActionNotifyCreate, `{"name":"quiet","notify_type":"error"}`)
	require.NoError(t, err)
	envs, err = call(t, c, ActionNotifyList, `{"name":"quiet"}`)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Regexp(t, `"msg":""`, string(envs[0].Response), "a missing message is an empty string")

	envs, err = call(t, c, ActionLayerCreate, `{"name":"raw","description":"as recorded"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"raw"}`, string(envs[0].Response))

	envs, err = call(t, c, ActionLayerList, ``)
	require.NoError(t, err)
	assert.JSONEq(t, `{"layers":[{"name":"raw","description":"as recorded"}]}`, string(envs[0].Response))
}

func TestDefaultCatalog_UnknownAndMalformed(t *testing.T) {
	c := newTestCatalog(t, 0)

	_, err := call(t, c, "sequence_explode", `{}`)
	assert.ErrorIs(t, err, ports.ErrUnknownAction)

	_, err = call(t, c, ActionTopicCreate, `{"name":"a/b","serialization_format":"cdr","ontology_tag":"x"}`)
	assert.ErrorIs(t, err, ports.ErrMalformedBody)

	_, err = call(t, c, ActionQuery, `{"items":[{"sequence":"a","timestamp_range":[5,1]}]}`)
	assert.ErrorIs(t, err, ports.ErrMalformedBody)

	names := make([]string, 0)
	for _, d := range c.Actions() {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, ActionSequenceCreate)
	assert.Contains(t, names, ActionLayerList)
	assert.Len(t, names, 11)
}
