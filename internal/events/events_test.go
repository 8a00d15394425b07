package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

func testPayload() ReservationPayload {
	staff := int64(3)
	return NewReservationPayload(
		&model.Tenant{ID: 7, Code: "ginza"},
		&model.Reservation{
			ID:            11,
			CustomerID:    5,
			StaffID:       &staff,
			Start:         civil.DateTime{Date: civil.MustParseDate("2025-01-15"), Time: civil.MustParseLocalTime("14:00")},
			Status:        model.StatusConfirmed,
			TotalPrice:    8000,
			TotalDuration: 150,
		},
	)
}

func TestEventBus_PublishJSON(t *testing.T) {
	logger := zerolog.Nop()
	bus := NewEventBus(&logger)

	var got []Event
	bus.Subscribe(func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	}, ReservationCreated, ReservationCancelled)
	bus.Subscribe(func(context.Context, Event) error { return errors.New("ignored") }, ReservationCreated)

	require.NoError(t, bus.PublishJSON(context.Background(), ReservationCreated, testPayload()))
	require.NoError(t, bus.PublishJSON(context.Background(), ReservationCompleted, testPayload()))

	require.Len(t, got, 1)
	assert.Equal(t, ReservationCreated, got[0].Type)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	p, err := got[0].Decode()
	require.NoError(t, err)
	assert.EqualValues(t, 7, p.TenantID)
	assert.Equal(t, "2025-01-15T14:00:00", p.Start.String())
	assert.Equal(t, 150, p.TotalDuration)
}

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *mockWriter) Close() error { return m.Called().Error(0) }

func TestKafkaForwarder(t *testing.T) {
	logger := zerolog.Nop()
	bus := NewEventBus(&logger)
	writer := new(mockWriter)
	fwd := NewKafkaForwarder(writer, &logger)
	fwd.Attach(bus)

	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		m := msgs[0]
		return string(m.Key) == "7" && len(m.Headers) == 2 && string(m.Headers[1].Value) == ReservationCancelled
	})).Return(nil).Once()

	require.NoError(t, bus.PublishJSON(context.Background(), ReservationCancelled, testPayload()))
	writer.AssertExpectations(t)

	writer.On("Close").Return(nil).Once()
	assert.NoError(t, fwd.Close())
}
