//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"pension/internal/audit"
	auditstore "pension/internal/audit/store"
	"pension/internal/audit/stream"
	"pension/internal/platform/config"
	"pension/internal/platform/kafka"
	id "pension/pkg/domain"
	"pension/pkg/platform/tx"
	"pension/pkg/testutil"
	"pension/pkg/testutil/containers"
)

func TestHistoryStreaming(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := config.KafkaConfig{
		Brokers:      rp.Brokers,
		HistoryTopic: "pension.transaction-history.test",
		Partitions:   1,
		Replication:  1,
	}
	client, err := kafka.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, kafka.EnsureTopic(ctx, client, cfg))
	require.NoError(t, kafka.EnsureTopic(ctx, client, cfg), "an existing topic is not an error")

	publisher := stream.NewPublisher(stream.NewKafkaSink(client, cfg.HistoryTopic))
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- publisher.Run(runCtx) }()

	trail := audit.NewTrail(auditstore.NewInMemory(), audit.WithStreamer(publisher))
	runner := tx.NewMemoryRunner()
	memberID := id.NewMemberID()

	testutil.When(t, "an entry commits", func(t *testing.T) {
		err := runner.RunInTx(ctx, func(txCtx context.Context) error {
			_, err := trail.Record(txCtx, audit.ForMember(memberID, audit.EntityContribution, audit.ChangeCreated, "New Monthly contribution added."))
			return err
		})
		require.NoError(t, err)
	})

	stop()
	require.NoError(t, <-done)

	testutil.Then(t, "it is on the topic keyed by member", func(t *testing.T) {
		consumer, err := kgo.NewClient(
			kgo.SeedBrokers(rp.Brokers...),
			kgo.ConsumeTopics(cfg.HistoryTopic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
		require.NoError(t, err)
		defer consumer.Close()

		var records []*kgo.Record
		for len(records) == 0 && ctx.Err() == nil {
			fetches := consumer.PollFetches(ctx)
			require.Empty(t, fetches.Errors())
			records = append(records, fetches.Records()...)
		}
		require.Len(t, records, 1)
		assert.Equal(t, memberID.String(), string(records[0].Key))

		var payload map[string]string
		require.NoError(t, json.Unmarshal(records[0].Value, &payload))
		assert.Equal(t, "Contribution", payload["entity_type"])
		assert.Equal(t, "Created", payload["change_type"])
		assert.Equal(t, "New Monthly contribution added.", payload["change_details"])
	})
}
