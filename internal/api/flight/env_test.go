package flight

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	arrowflight "github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"mosaicod/internal/api/actions"
	"mosaicod/internal/application/services"
	"mosaicod/internal/infrastructure/chunkstore"
	memstore "mosaicod/internal/infrastructure/chunkstore/mem"
	memlocks "mosaicod/internal/infrastructure/locks/mem"
	memrepo "mosaicod/internal/infrastructure/repositories/mem"
)

const bufSize = 1 << 20

// newTestClient serves a Flight service over an in-memory listener
func newTestClient(t *testing.T) arrowflight.FlightServiceClient {
	t.Helper()

	repo := memrepo.NewRegistry()
	codec, err := chunkstore.NewCodec(chunkstore.CodecSnappy)
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	locks := services.NewLockManager(memlocks.NewLocker(), time.Second, logr.Discard())
	payloads := services.NewPayloadStore(memstore.NewStore(), codec)
	resources := services.NewResourceService(repo, locks, payloads, logr.Discard())
	query := services.NewQueryResolver(repo)
	notify, err := services.NewNotifyService(repo, logr.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = notify.Close() })

	catalog, err := actions.NewDefaultCatalog(actions.Services{
		Resources: resources,
		Query:     query,
		Notify:    notify,
	})
	require.NoError(t, err)

	srv := grpc.NewServer()
	arrowflight.RegisterFlightServiceServer(srv, NewService(Deps{
		Catalog:   catalog,
		Resources: resources,
		Query:     query,
		Ingest:    services.NewIngestService(repo, locks, payloads, nil, logr.Discard()),
		Payloads:  payloads,
	}, logr.Discard()))

	lis := bufconn.Listen(bufSize)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return arrowflight.NewFlightServiceClient(conn)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// doAction collects the response envelopes of an action
func doAction(ctx context.Context, client arrowflight.FlightServiceClient, name, body string) ([][]byte, error) {
	stream, err := client.DoAction(ctx, &arrowflight.Action{Type: name, Body: []byte(body)})
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for {
		res, err := stream.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, res.GetBody())
	}
}

func createKey(t *testing.T, client arrowflight.FlightServiceClient, name, body string) string {
	t.Helper()
	bodies, err := doAction(testContext(t), client, name, body)
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	action, key, err := actions.DecodeEnvelope[actions.ResourceKey](bodies[0])
	require.NoError(t, err)
	require.Equal(t, name, action)
	require.NotEmpty(t, key.Key)
	return key.Key
}

// seedTopic creates a sequence holding one topic and returns the topic key
func seedTopic(t *testing.T, client arrowflight.FlightServiceClient, seq, topic string) string {
	t.Helper()
	seqKey := createKey(t, client, actions.ActionSequenceCreate, `{"name":"`+seq+`"}`)
	return createKey(t, client, actions.ActionTopicCreate, `{"name":"`+seq+`/`+topic+`","sequence_key":"`+seqKey+`","serialization_format":"ros2","ontology_tag":"image"}`)
}

func chunkMessage(t *testing.T, desc *arrowflight.FlightDescriptor, start, end int64, body []byte) *arrowflight.FlightData {
	t.Helper()
	md, err := json.Marshal(map[string][2]int64{"timestamp_range": {start, end}})
	require.NoError(t, err)
	return &arrowflight.FlightData{FlightDescriptor: desc, AppMetadata: md, DataBody: body}
}

func putCommand(t *testing.T, topicKey string) *arrowflight.FlightDescriptor {
	t.Helper()
	cmd, err := json.Marshal(PutCommand{TopicKey: topicKey})
	require.NoError(t, err)
	return &arrowflight.FlightDescriptor{Type: arrowflight.DescriptorCMD, Cmd: cmd}
}

func recvAck(t *testing.T, stream arrowflight.FlightService_DoPutClient) PutAck {
	t.Helper()
	res, err := stream.Recv()
	require.NoError(t, err)
	var ack PutAck
	require.NoError(t, json.Unmarshal(res.GetAppMetadata(), &ack))
	return ack
}

// finishPut half-closes the stream and waits for the server to end it
func finishPut(stream arrowflight.FlightService_DoPutClient) error {
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
