package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/router"
)

func TestMemoryQueueBatchesAndTimesOut(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, q.Send(ctx, body, "doc-1:91"))
	}

	msgs, err := q.Receive(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "b", msgs[1].Body)
	assert.NotEmpty(t, msgs[0].ReceiptHandle)
	assert.Equal(t, 1, q.Len())

	msgs, err = q.Receive(ctx, 5, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	start := time.Now()
	msgs, err = q.Receive(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestMemoryQueueReceiveHonoursCancel(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEncodeEventRoundTripKeepsID(t *testing.T) {
	evt, body, err := encodeEvent(router.InboundEvent{ID: "evt-1", DoctorID: "doc-1", From: "919800000000", Type: "text", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", evt.ID)

	decoded, err := decodeEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", decoded.DoctorID)
	assert.Equal(t, "hi", decoded.Text)
}

type fakeSQS struct {
	inputs   []*sqs.SendMessageInput
	sent     []string
	deleted  []string
	received *sqs.ReceiveMessageInput
	messages []types.Message
	err      error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue(t *testing.T) {
	client := &fakeSQS{messages: []types.Message{{
		MessageId:     aws.String("m-1"),
		Body:          aws.String(`{"id":"evt-1"}`),
		ReceiptHandle: aws.String("rh-1"),
	}}}
	q := NewSQSQueue(client, "https://sqs.local/queue")
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "body", "doc-1:91"))
	assert.Equal(t, []string{"body"}, client.sent)
	assert.False(t, q.FIFO())
	assert.Nil(t, client.inputs[0].MessageGroupId)

	msgs, err := q.Receive(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, Message{ID: "m-1", Body: `{"id":"evt-1"}`, ReceiptHandle: "rh-1"}, msgs[0])
	assert.Equal(t, int32(5), client.received.MaxNumberOfMessages)
	assert.Equal(t, int32(10), client.received.WaitTimeSeconds)

	require.NoError(t, q.Delete(ctx, "rh-1"))
	require.NoError(t, q.Delete(ctx, ""))
	assert.Equal(t, []string{"rh-1"}, client.deleted)

	client.err = errors.New("throttled")
	assert.ErrorContains(t, q.Send(ctx, "x", ""), "inbound: send SQS message")
}

func TestSQSFIFOQueueGroupsByPatient(t *testing.T) {
	client := &fakeSQS{}
	q := NewSQSQueue(client, "https://sqs.local/000/inbound.fifo")
	require.True(t, q.FIFO())
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, `{"id":"evt-1"}`, "doc-1:919800000000"))
	require.NoError(t, q.Send(ctx, `{"id":"evt-2"}`, "doc-1:919800000000"))
	require.NoError(t, q.Send(ctx, `{"id":"evt-3"}`, ""))

	require.Len(t, client.inputs, 3)
	assert.Equal(t, "doc-1:919800000000", aws.ToString(client.inputs[0].MessageGroupId))
	assert.Equal(t, "doc-1:919800000000", aws.ToString(client.inputs[1].MessageGroupId))
	assert.Equal(t, "default", aws.ToString(client.inputs[2].MessageGroupId))
	assert.NotEqual(t, aws.ToString(client.inputs[0].MessageDeduplicationId), aws.ToString(client.inputs[1].MessageDeduplicationId))
	assert.Len(t, aws.ToString(client.inputs[0].MessageDeduplicationId), 64)
}

func TestIsFIFOQueue(t *testing.T) {
	assert.True(t, IsFIFOQueue("https://sqs.ap-south-1.amazonaws.com/1/inbound.fifo"))
	assert.True(t, IsFIFOQueue("http://localhost:4566/000000000000/inbound.fifo/"))
	assert.False(t, IsFIFOQueue("https://sqs.ap-south-1.amazonaws.com/1/inbound"))
}

func TestPublisherUsesPatientGroupKey(t *testing.T) {
	client := &fakeSQS{}
	p := NewPublisher(NewSQSQueue(client, "https://sqs.local/1/inbound.fifo"), nil)

	require.NoError(t, p.Enqueue(context.Background(), router.InboundEvent{DoctorID: "doc-1", From: "919800000000", Type: "text", Text: "hi"}))

	require.Len(t, client.inputs, 1)
	assert.Equal(t, "doc-1:919800000000", aws.ToString(client.inputs[0].MessageGroupId))
}

func TestRedisDeduper(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	d := NewRedisDeduper(client, time.Hour)
	ctx := context.Background()

	ok, err := d.Claim(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Claim(ctx, "wamid.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Hour, mr.TTL(dedupKeyPrefix+"wamid.1"))

	require.NoError(t, d.Release(ctx, "wamid.1"))
	ok, err = d.Claim(ctx, "wamid.1")
	require.NoError(t, err)
	assert.True(t, ok)
}
