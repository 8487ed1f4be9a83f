package flight

import (
	"encoding/json"
	"fmt"
	"io"
	"testing"

	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mosaicod/internal/api/actions"
)

func requireCode(t *testing.T, want codes.Code, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err), "unexpected status: %v", err)
}

func TestDoAction_Lifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)

	topicKey := seedTopic(t, client, "run", "camera")
	assert.NotEmpty(t, topicKey)

	bodies, err := doAction(ctx, client, actions.ActionTopicSystemInfo, `{"name":"run/camera"}`)
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	_, info, err := actions.DecodeEnvelope[actions.TopicSystemInfo](bodies[0])
	require.NoError(t, err)
	assert.Zero(t, info.ChunksNumber)
	assert.False(t, info.IsLocked)

	bodies, err = doAction(ctx, client, actions.ActionSequenceDelete, `{"name":"run","allow_data_loss":true}`)
	require.NoError(t, err)
	require.Len(t, bodies, 1)

	_, err = doAction(ctx, client, actions.ActionSequenceSystemInfo, `{"name":"run"}`)
	requireCode(t, codes.NotFound, err)
}

func TestDoAction_Errors(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)
	seedTopic(t, client, "run", "camera")

	cases := []struct {
		name   string
		action string
		body   string
		code   codes.Code
	}{
		{"unknown action", "sequence_rename", `{}`, codes.Unimplemented},
		{"malformed body", actions.ActionSequenceCreate, `{"name": 5}`, codes.InvalidArgument},
		{"invalid json", actions.ActionSequenceCreate, `{"name":`, codes.InvalidArgument},
		{"bad name", actions.ActionSequenceCreate, `{"name":"a/b"}`, codes.InvalidArgument},
		{"duplicate", actions.ActionSequenceCreate, `{"name":"run"}`, codes.AlreadyExists},
		{"missing topic", actions.ActionTopicSystemInfo, `{"name":"run/lidar"}`, codes.NotFound},
		{"delete without data loss", actions.ActionSequenceDelete, `{"name":"run"}`, codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := doAction(ctx, client, tc.action, tc.body)
			requireCode(t, tc.code, err)
		})
	}
}

func TestListActions(t *testing.T) {
	client := newTestClient(t)
	stream, err := client.ListActions(testContext(t), &arrowflight.Empty{})
	require.NoError(t, err)

	var names []string
	for {
		at, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.NotEmpty(t, at.GetDescription())
		names = append(names, at.GetType())
	}
	assert.Len(t, names, 11)
	assert.Contains(t, names, actions.ActionQuery)
	assert.IsIncreasing(t, names)
}

func TestDoPut_ThenDoGet(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)
	topicKey := seedTopic(t, client, "run", "camera")

	stream, err := client.DoPut(ctx)
	require.NoError(t, err)

	var total int64
	for i := 0; i < 3; i++ {
		var desc *arrowflight.FlightDescriptor
		if i == 0 {
			desc = putCommand(t, topicKey)
		}
		body := []byte(fmt.Sprintf("chunk-%d", i))
		require.NoError(t, stream.Send(chunkMessage(t, desc, int64(i*10), int64(i*10+9), body)))

		ack := recvAck(t, stream)
		assert.Equal(t, int64(i), ack.ChunkIndex)
		assert.Equal(t, int64(i+1), ack.ChunksNumber)
		total += int64(len(body))
		assert.Equal(t, total, ack.TotalSizeBytes, "totals count the bytes sent")
	}
	require.NoError(t, finishPut(stream))

	bodies, err := doAction(ctx, client, actions.ActionTopicSystemInfo, `{"name":"run/camera"}`)
	require.NoError(t, err)
	_, info, err := actions.DecodeEnvelope[actions.TopicSystemInfo](bodies[0])
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.ChunksNumber)
	assert.Equal(t, total, info.TotalSizeBytes)
	assert.False(t, info.IsLocked, "the lock is released when the stream ends")

	get, err := client.DoGet(ctx, &arrowflight.Ticket{Ticket: []byte(`{"items":[{"sequence":"run"}]}`)})
	require.NoError(t, err)

	msg, err := get.Recv()
	require.NoError(t, err)
	var header TopicHeader
	require.NoError(t, json.Unmarshal(msg.GetAppMetadata(), &header))
	assert.Equal(t, "run", header.Sequence)
	assert.Equal(t, "run/camera", header.Locator)
	assert.Equal(t, int64(3), header.ChunksNumber)
	assert.Empty(t, msg.GetDataBody())

	for i := 0; i < 3; i++ {
		msg, err := get.Recv()
		require.NoError(t, err)
		var frame ChunkFrame
		require.NoError(t, json.Unmarshal(msg.GetAppMetadata(), &frame))
		assert.Equal(t, int64(i), frame.ChunkIndex)
		assert.Equal(t, fmt.Sprintf("chunk-%d", i), string(msg.GetDataBody()))
	}
	_, err = get.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestDoGet_RangeFilter(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)
	topicKey := seedTopic(t, client, "run", "camera")

	stream, err := client.DoPut(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(chunkMessage(t, putCommand(t, topicKey), 0, 9, []byte("a"))))
	recvAck(t, stream)
	require.NoError(t, stream.Send(chunkMessage(t, nil, 100, 109, []byte("b"))))
	recvAck(t, stream)
	require.NoError(t, finishPut(stream))

	get, err := client.DoGet(ctx, &arrowflight.Ticket{Ticket: []byte(`{"items":[{"sequence":"run","topic":"camera","timestamp_range":[50,200]}]}`)})
	require.NoError(t, err)

	msg, err := get.Recv()
	require.NoError(t, err)
	var header TopicHeader
	require.NoError(t, json.Unmarshal(msg.GetAppMetadata(), &header))
	assert.Equal(t, int64(1), header.ChunksNumber)
	require.NotNil(t, header.TimestampRange)

	msg, err = get.Recv()
	require.NoError(t, err)
	assert.Equal(t, "b", string(msg.GetDataBody()))

	_, err = get.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestDoGet_Errors(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)
	seedTopic(t, client, "run", "camera")

	for name, tc := range map[string]struct {
		ticket string
		code   codes.Code
	}{
		"missing sequence": {`{"items":[{"sequence":"run"},{"sequence":"missing"}]}`, codes.NotFound},
		"missing topic":    {`{"items":[{"sequence":"run","topic":"lidar"}]}`, codes.NotFound},
		"malformed ticket": {`not json`, codes.InvalidArgument},
		"inverted range":   {`{"items":[{"sequence":"run","timestamp_range":[9,1]}]}`, codes.InvalidArgument},
	} {
		t.Run(name, func(t *testing.T) {
			get, err := client.DoGet(ctx, &arrowflight.Ticket{Ticket: []byte(tc.ticket)})
			require.NoError(t, err)
			_, err = get.Recv()
			requireCode(t, tc.code, err)
		})
	}
}

func TestDoPut_ConcurrentUploadIsRejected(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)
	topicKey := seedTopic(t, client, "run", "camera")

	first, err := client.DoPut(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Send(chunkMessage(t, putCommand(t, topicKey), 0, 1, []byte("first"))))
	recvAck(t, first)

	// the first stream holds the topic now
	second, err := client.DoPut(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Send(chunkMessage(t, putCommand(t, topicKey), 2, 3, []byte("second"))))
	_, err = second.Recv()
	requireCode(t, codes.Aborted, err)

	bodies, err := doAction(ctx, client, actions.ActionTopicSystemInfo, `{"name":"run/camera"}`)
	require.NoError(t, err)
	_, info, err := actions.DecodeEnvelope[actions.TopicSystemInfo](bodies[0])
	require.NoError(t, err)
	assert.True(t, info.IsLocked)

	require.NoError(t, finishPut(first))

	retry, err := client.DoPut(ctx)
	require.NoError(t, err)
	path := &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorPATH, Path: []string{"run", "camera"}}
	require.NoError(t, retry.Send(chunkMessage(t, path, 2, 3, []byte("second"))))
	ack := recvAck(t, retry)
	assert.Equal(t, int64(1), ack.ChunkIndex)
	require.NoError(t, finishPut(retry))
}

func TestDoPut_Errors(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)
	topicKey := seedTopic(t, client, "run", "camera")

	t.Run("no descriptor", func(t *testing.T) {
		stream, err := client.DoPut(ctx)
		require.NoError(t, err)
		require.NoError(t, stream.Send(chunkMessage(t, nil, 0, 1, []byte("x"))))
		requireCode(t, codes.InvalidArgument, finishPut(stream))
	})

	t.Run("unknown topic key", func(t *testing.T) {
		stream, err := client.DoPut(ctx)
		require.NoError(t, err)
		require.NoError(t, stream.Send(chunkMessage(t, putCommand(t, "00000000-0000-0000-0000-000000000001"), 0, 1, []byte("x"))))
		requireCode(t, codes.NotFound, finishPut(stream))
	})

	t.Run("missing chunk range", func(t *testing.T) {
		stream, err := client.DoPut(ctx)
		require.NoError(t, err)
		require.NoError(t, stream.Send(&arrowflight.FlightData{FlightDescriptor: putCommand(t, topicKey), AppMetadata: []byte(`{}`), DataBody: []byte("x")}))
		requireCode(t, codes.InvalidArgument, finishPut(stream))

		// the failed upload released the topic
		again, err := client.DoPut(ctx)
		require.NoError(t, err)
		require.NoError(t, again.Send(chunkMessage(t, putCommand(t, topicKey), 0, 1, []byte("x"))))
		assert.Equal(t, int64(0), recvAck(t, again).ChunkIndex)
		require.NoError(t, finishPut(again))
	})

	t.Run("failed upload is notified", func(t *testing.T) {
		bodies, err := doAction(ctx, client, actions.ActionNotifyList, `{"name":"run/camera"}`)
		require.NoError(t, err)
		require.Len(t, bodies, 1)
		_, list, err := actions.DecodeEnvelope[actions.NotifyList](bodies[0])
		require.NoError(t, err)

		var types []string
		for _, n := range list.Notifies {
			types = append(types, n.NotifyType)
		}
		assert.Contains(t, types, "upload_failed")
		assert.Contains(t, types, "upload_completed")
	})
}

func TestFlightInfo(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)
	topicKey := seedTopic(t, client, "run", "camera")
	seedTopic(t, client, "other", "imu")

	stream, err := client.DoPut(ctx)
	require.NoError(t, err)
	require.NoError(t, stream.Send(chunkMessage(t, putCommand(t, topicKey), 0, 1, []byte("payload"))))
	ack := recvAck(t, stream)
	require.NoError(t, finishPut(stream))

	info, err := client.GetFlightInfo(ctx, &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorPATH, Path: []string{"run", "camera"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.GetTotalRecords())
	assert.Equal(t, int64(len("payload")), ack.TotalSizeBytes)
	assert.Equal(t, ack.TotalSizeBytes, info.GetTotalBytes())
	assert.True(t, info.GetOrdered())
	require.Len(t, info.GetEndpoint(), 1)

	// the endpoint ticket is a query for the topic
	get, err := client.DoGet(ctx, info.GetEndpoint()[0].GetTicket())
	require.NoError(t, err)
	_, err = get.Recv()
	require.NoError(t, err)
	msg, err := get.Recv()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(msg.GetDataBody()))

	info, err = client.GetFlightInfo(ctx, &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorPATH, Path: []string{"run"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.GetTotalRecords())
	assert.GreaterOrEqual(t, info.GetTotalBytes(), ack.TotalSizeBytes)

	_, err = client.GetFlightInfo(ctx, &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorPATH, Path: []string{"missing"}})
	requireCode(t, codes.NotFound, err)
	_, err = client.GetFlightInfo(ctx, &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorCMD, Cmd: []byte("x")})
	requireCode(t, codes.InvalidArgument, err)

	list, err := client.ListFlights(ctx, &arrowflight.Criteria{Expression: []byte("ru")})
	require.NoError(t, err)
	var paths [][]string
	for {
		fi, err := list.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		paths = append(paths, fi.GetFlightDescriptor().GetPath())
	}
	assert.Equal(t, [][]string{{"run"}}, paths)
}

func TestUnsupportedMethods(t *testing.T) {
	client := newTestClient(t)
	ctx := testContext(t)

	hs, err := client.Handshake(ctx)
	require.NoError(t, err)
	_, err = hs.Recv()
	requireCode(t, codes.Unimplemented, err)

	ex, err := client.DoExchange(ctx)
	require.NoError(t, err)
	_, err = ex.Recv()
	requireCode(t, codes.Unimplemented, err)

	_, err = client.PollFlightInfo(ctx, &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorPATH, Path: []string{"run"}})
	requireCode(t, codes.Unimplemented, err)

	_, err = client.GetSchema(ctx, &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorPATH, Path: []string{"run"}})
	requireCode(t, codes.Unimplemented, err)
}
