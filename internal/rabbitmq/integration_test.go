package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/premium-access/internal/services/billing"
)

const amqpPort nat.Port = "5672/tcp"

func setupRabbitMQ(ctx context.Context, t *testing.T) string {
	t.Helper()
	if url := os.Getenv("TEST_RABBITMQ_URL"); url != "" {
		return url
	}

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{string(amqpPort)},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForListeningPort(amqpPort).WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, amqpPort)
	require.NoError(t, err)
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestPublishAndConsume_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	url := setupRabbitMQ(ctx, t)
	conn, err := Connect(ctx, url, 10, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	topo := BillingTopology("billing-test", "test.subscription.changed", "test.reconcile.failed")
	ch, err := SetupChannel(conn, topo)
	require.NoError(t, err)
	defer ch.Close()

	received := make(chan billing.FailureNotice, 1)
	err = ConsumerMessage(ctx, ch, "test.reconcile.failed", func(body []byte) error {
		var n billing.FailureNotice
		if err := json.Unmarshal(body, &n); err != nil {
			return err
		}
		received <- n
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	pubCh, err := conn.Channel()
	require.NoError(t, err)
	defer pubCh.Close()
	p := NewPublisher(pubCh, topo.Exchange)
	require.NoError(t, p.PublishReconcileFailed(ctx, billing.FailureNotice{EventID: "evt_1", Kind: "invoice.paid", Reason: "boom"}))

	select {
	case n := <-received:
		assert.Equal(t, "evt_1", n.EventID)
		assert.Equal(t, "boom", n.Reason)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
