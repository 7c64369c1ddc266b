package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careroute/interlink/channel"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/message"
)

type fakeSource struct{}

func (f *fakeSource) Initialize() error                    { return nil }
func (f *fakeSource) Start(context.Context, Handler) error { return nil }
func (f *fakeSource) Stop(time.Duration) error             { return nil }

type fakeDestination struct{}

func (f *fakeDestination) Initialize() error           { return nil }
func (f *fakeDestination) Start(context.Context) error { return nil }
func (f *fakeDestination) Stop(time.Duration) error    { return nil }

func (f *fakeDestination) Send(context.Context, *message.ConnectorMessage) (message.Status, error) {
	return message.StatusSent, nil
}

func fakeSourceFactory(channel.Connector, Dependencies) (Source, error) {
	return &fakeSource{}, nil
}

func fakeDestinationFactory(channel.Destination, Dependencies) (Destination, error) {
	return &fakeDestination{}, nil
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterSource("nats", fakeSourceFactory))
	require.NoError(t, registry.RegisterDestination("file", fakeDestinationFactory))

	src, err := registry.NewSource(channel.Connector{Type: "nats"}, Dependencies{})
	require.NoError(t, err)
	assert.NotNil(t, src)

	dest, err := registry.NewDestination(channel.Destination{
		Name:      "archive",
		Connector: channel.Connector{Type: "file"},
	}, Dependencies{})
	require.NoError(t, err)
	assert.NotNil(t, dest)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	registry := NewRegistry()

	err := registry.RegisterSource("", fakeSourceFactory)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)

	err = registry.RegisterSource("nats", nil)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)

	err = registry.RegisterDestination("", fakeDestinationFactory)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)

	err = registry.RegisterDestination("file", nil)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterSource("nats", fakeSourceFactory))

	err := registry.RegisterSource("nats", fakeSourceFactory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `source factory "nats" is already registered`)

	// Same type name is fine across the two kinds.
	require.NoError(t, registry.RegisterDestination("nats", fakeDestinationFactory))
	err = registry.RegisterDestination("nats", fakeDestinationFactory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `destination factory "nats" is already registered`)
}

func TestRegistry_UnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.NewSource(channel.Connector{Type: "tcp"}, Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source connector type "tcp"`)
	assert.True(t, pkgerrors.IsInvalid(err))

	_, err = registry.NewDestination(channel.Destination{
		Connector: channel.Connector{Type: "smtp"},
	}, Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown destination connector type "smtp"`)
}

func TestRegistry_FactoryErrorPropagates(t *testing.T) {
	registry := NewRegistry()
	boom := errors.New("bad settings")
	require.NoError(t, registry.RegisterSource("nats",
		func(channel.Connector, Dependencies) (Source, error) {
			return nil, boom
		}))

	_, err := registry.NewSource(channel.Connector{Type: "nats"}, Dependencies{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_Types(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterSource("nats", fakeSourceFactory))
	require.NoError(t, registry.RegisterDestination("nats", fakeDestinationFactory))
	require.NoError(t, registry.RegisterDestination("file", fakeDestinationFactory))

	assert.Equal(t, []string{"nats"}, registry.SourceTypes())
	assert.Equal(t, []string{"file", "nats"}, registry.DestinationTypes())
}
