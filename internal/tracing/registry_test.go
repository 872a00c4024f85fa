package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct {
	name string
}

func (f *stubFactory) Name() string       { return f.name }
func (f *stubFactory) ConfigType() string { return "type.googleapis.com/test.Stub" }
func (f *stubFactory) NewConfig() any     { return &map[string]string{} }

func (f *stubFactory) CreateTracer(context.Context, any, ClusterManager) (*Tracer, error) {
	return NewNoopTracer(), nil
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(&stubFactory{name: "b"}))
	require.NoError(t, r.Register(&stubFactory{name: "a"}))

	err := r.Register(&stubFactory{name: "a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDoubleRegistration))
	assert.Equal(t, "Double registration for name: 'a'", err.Error())

	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	stub := &stubFactory{name: "stub"}
	r.MustRegister(stub)

	got, err := r.Get("stub")
	require.NoError(t, err)
	assert.Same(t, stub, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownFactory)
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(&stubFactory{name: "stub"})

	assert.Panics(t, func() {
		r.MustRegister(&stubFactory{name: "stub"})
	})
}

func TestDefaultRegistry_DoubleRegistration(t *testing.T) {
	t.Parallel()

	factory, err := DefaultRegistry().Get(OTLPFactoryName)
	require.NoError(t, err)
	assert.IsType(t, &OTLPFactory{}, factory)

	err = Register(NewOTLPFactory())
	require.Error(t, err)
	assert.Equal(t, "Double registration for name: 'tlsutil.otlp'", err.Error())
}
