package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"savethespice-backend/internal/domain"
	appErrors "savethespice-backend/internal/errors"
)

type fakeClient struct {
	calls  []*eventbridge.PutEventsInput
	err    error
	failed int32
}

func (f *fakeClient) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for range in.Entries {
		entry := types.PutEventsResultEntry{}
		if f.failed > 0 {
			entry.ErrorCode = aws.String("InternalFailure")
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func events(n int) []domain.Event {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Event, n)
	for i := range out {
		out[i] = domain.NewEvent(domain.EventRecipeCreated, "u1", at, i)
	}
	return out
}

func TestPublisher_BatchesByTen(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, "bus", "", zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), events(23)...))
	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Entries, 10)
	assert.Len(t, client.calls[2].Entries, 3)

	entry := client.calls[0].Entries[1]
	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, DefaultSource, aws.ToString(entry.Source))
	assert.Equal(t, domain.EventRecipeCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"u1/1"}, entry.Resources)

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "u1", detail["userId"])
}

func TestPublisher_NothingToSend(t *testing.T) {
	client := &fakeClient{}
	require.NoError(t, NewPublisher(client, "", "", zap.NewNop()).Publish(context.Background()))
	assert.Empty(t, client.calls)
}

func TestPublisher_Failures(t *testing.T) {
	client := &fakeClient{err: errors.New("throttled")}
	err := NewPublisher(client, "bus", "", zap.NewNop()).Publish(context.Background(), events(12)...)
	assert.True(t, appErrors.IsUnavailable(err))
	assert.Len(t, client.calls, 1, "later batches are not attempted")

	client = &fakeClient{failed: 2}
	err = NewPublisher(client, "bus", "", zap.NewNop()).Publish(context.Background(), events(2)...)
	assert.True(t, appErrors.IsUnavailable(err))
}

func TestLogBus(t *testing.T) {
	assert.NoError(t, NewLogBus(zap.NewNop()).Publish(context.Background(), events(2)...))
}
