package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromDriver(t *testing.T) {
	p, err := NewFromDriver("", FactoryOptions{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)

	_, err = NewFromDriver("rabbit", FactoryOptions{})
	require.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewFromDriver(DriverNATS, FactoryOptions{})
	require.ErrorIs(t, err, ErrNATSURLRequired)

	_, err = NewFromDriver(DriverKafka, FactoryOptions{})
	require.ErrorIs(t, err, ErrKafkaBrokersRequired)

	_, err = NewFromDriver(DriverNSQ, FactoryOptions{})
	require.ErrorIs(t, err, ErrNSQProducerAddrRequired)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.ErrorIs(t, m.Publish(ctx, "", Message{}), ErrDestinationRequired)
	require.NoError(t, m.Publish(ctx, "audit", Message{Key: []byte("alice"), Body: []byte("{}")}))

	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "audit", msgs[0].Destination)
	assert.Equal(t, []byte("alice"), msgs[0].Message.Key)

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Publish(ctx, "audit", Message{}), ErrClosed)
}

func TestNoop(t *testing.T) {
	require.NoError(t, Noop{}.Publish(context.Background(), "audit", Message{}))
	require.NoError(t, Noop{}.Close())
}
