package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ name string }

type scheduler struct{ clock *clock }

func TestRegistryProvide(t *testing.T) {
	reg := NewRegistry()
	svc := &clock{name: "wall"}

	require.NoError(t, reg.Provide("clock", svc))
	assert.Same(t, svc, reg.Get("clock"))

	err := reg.Provide("clock", &clock{})
	assert.ErrorIs(t, err, ErrServiceExists)

	assert.ErrorIs(t, reg.Provide("", svc), ErrInvalidName)
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry()
	assert.Nil(t, reg.Get("analytics"))
}

func TestRegistryResolveWithDependencies(t *testing.T) {
	reg := NewRegistry()
	calls := 0

	require.NoError(t, reg.Register("scheduler", func(ctx context.Context, r *Registry) (any, error) {
		c, err := r.Require(ctx, "clock")
		if err != nil {
			return nil, err
		}
		return &scheduler{clock: c.(*clock)}, nil
	}))
	require.NoError(t, reg.Register("clock", func(context.Context, *Registry) (any, error) {
		calls++
		return &clock{name: "wall"}, nil
	}))

	assert.Nil(t, reg.Get("scheduler"), "factories are not built before Resolve")

	require.NoError(t, reg.Resolve(context.Background()))

	s, ok := reg.Get("scheduler").(*scheduler)
	require.True(t, ok)
	assert.Same(t, reg.Get("clock"), s.clock)
	assert.Equal(t, 1, calls, "clock must be built once")
}

func TestRegistryCircularDependency(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", func(ctx context.Context, r *Registry) (any, error) {
		return r.Require(ctx, "b")
	}))
	require.NoError(t, reg.Register("b", func(ctx context.Context, r *Registry) (any, error) {
		return r.Require(ctx, "a")
	}))

	err := reg.Resolve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircularDependency)
	assert.Contains(t, err.Error(), "a -> b -> a")
	assert.Nil(t, reg.Get("a"))
}

func TestRegistryFactoryError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	require.NoError(t, reg.Register("broken", func(context.Context, *Registry) (any, error) {
		return nil, boom
	}))

	err := reg.Resolve(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, reg.Get("broken"))
}

func TestRegistryRequireMissing(t *testing.T) {
	_, err := NewRegistry().Require(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestRegistryRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Register("", func(context.Context, *Registry) (any, error) { return nil, nil }), ErrInvalidName)
	assert.Error(t, reg.Register("x", nil))

	require.NoError(t, reg.Provide("dom", struct{}{}))
	err := reg.Register("dom", func(context.Context, *Registry) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrServiceExists)
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Provide("dom", struct{}{}))
	require.NoError(t, reg.Register("analytics", func(context.Context, *Registry) (any, error) { return 1, nil }))

	assert.Equal(t, []string{"analytics", "dom"}, reg.Names())
}

func TestRegistryResolveCancelled(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("x", func(context.Context, *Registry) (any, error) { return 1, nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, reg.Resolve(ctx), context.Canceled)
}
