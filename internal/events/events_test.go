package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"parkease/internal/domain"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSQS struct {
	mock.Mock
}

func (m *MockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	return args.Get(0).(*redis.IntCmd)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.ReservationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func sampleEvent() domain.ReservationEvent {
	return domain.ReservationEvent{
		EventID:       "evt-1",
		Type:          domain.EventReservationCreated,
		ReservationID: 42,
		SpotID:        7,
		UserID:        3,
		SpotClass:     domain.ClassEV,
		State:         domain.StateReserved,
		Availability:  domain.Availability{Standard: 4, Ev: 1},
		OccurredAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSQSPublisher_Publish(t *testing.T) {
	client := new(MockSQS)
	client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
		var got domain.ReservationEvent
		if err := json.Unmarshal([]byte(*in.MessageBody), &got); err != nil {
			return false
		}
		return *in.QueueUrl == "https://sqs.local/q" &&
			got.ReservationID == 42 &&
			*in.MessageAttributes["event_type"].StringValue == string(domain.EventReservationCreated)
	})).Return(&sqs.SendMessageOutput{}, nil)

	err := NewSQSPublisher(client, "https://sqs.local/q").Publish(context.Background(), sampleEvent())
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSQSPublisher_Error(t *testing.T) {
	client := new(MockSQS)
	client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := NewSQSPublisher(client, "q").Publish(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "throttled")
}

func TestRedisPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)

	client := new(MockRedis)
	client.On("Publish", ctx, "parkease.reservations", mock.AnythingOfType("[]uint8")).Return(cmd)

	err := NewRedisPublisher(client, "parkease.reservations").Publish(ctx, sampleEvent())
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestRedisPublisher_Error(t *testing.T) {
	ctx := context.Background()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetErr(errors.New("connection refused"))

	client := new(MockRedis)
	client.On("Publish", ctx, "ch", mock.Anything).Return(cmd)

	err := NewRedisPublisher(client, "ch").Publish(ctx, sampleEvent())
	assert.ErrorContains(t, err, "connection refused")
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	ctx := context.Background()
	event := sampleEvent()

	failing := new(MockPublisher)
	failing.On("Publish", ctx, event).Return(errors.New("down"))
	ok := new(MockPublisher)
	ok.On("Publish", ctx, event).Return(nil)

	err := Multi{failing, ok, Noop{}}.Publish(ctx, event)
	assert.ErrorContains(t, err, "down")
	failing.AssertExpectations(t)
	ok.AssertExpectations(t)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Publish(context.Background(), sampleEvent()))
}
