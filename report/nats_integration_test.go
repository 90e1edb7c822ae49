package report_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/c360/eventlatency/latency"
	"github.com/c360/eventlatency/report"
)

// startNATS runs a JetStream-enabled NATS server in a container and returns its URL
func startNATS(t *testing.T) string {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS to run NATS integration tests")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "nats:2.11.7-alpine",
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222", "--js"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(30*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start NATS container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background()) // Best effort test cleanup
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}

func TestNATSSink_Integration_CoreNATS(t *testing.T) {
	conn, err := nats.Connect(startNATS(t), nats.MaxReconnects(0))
	require.NoError(t, err)
	defer conn.Close()

	sub, err := conn.SubscribeSync("eventlatency.>")
	require.NoError(t, err)

	sink, err := report.NewNATSSink(conn, report.WithSubject("eventlatency.app"), report.WithAppender("app"))
	require.NoError(t, err)

	rec, err := latency.NewRecorder(latency.Config{Name: "app", WindowSize: 2, Sink: sink})
	require.NoError(t, err)
	require.NoError(t, rec.Start(context.Background()))

	for i := 0; i < 4; i++ {
		require.NoError(t, rec.Record(func() error { return nil }))
	}
	require.NoError(t, rec.Stop(5*time.Second))
	require.NoError(t, conn.Flush())

	for i := 0; i < 2; i++ {
		msg, err := sub.NextMsg(5 * time.Second)
		require.NoError(t, err)

		var event report.Event
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "app", event.Appender)
		assert.Equal(t, 2, event.Count)
	}
}

func TestNATSSink_Integration_JetStream(t *testing.T) {
	conn, err := nats.Connect(startNATS(t), nats.MaxReconnects(0))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	js, err := jetstream.New(conn)
	require.NoError(t, err)

	stream, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:     "EVENTLATENCY",
		Subjects: []string{"eventlatency.>"},
	})
	require.NoError(t, err)

	sink, err := report.NewNATSSink(nil, report.WithJetStream(js), report.WithSubject("eventlatency.app"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Write(ctx, latency.Summary{Count: 1, Max: int64(i)}))
	}

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.State.Msgs)
}
