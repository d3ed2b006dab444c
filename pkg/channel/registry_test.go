package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundstation/bplib/pkg/config"
	"github.com/groundstation/bplib/pkg/osshim"
	"github.com/groundstation/bplib/pkg/storage/memory"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry(0)
	c, _ := newTestChannel(t, config.DefaultAttributes())

	require.NoError(t, reg.RegisterChannel(c))
	assert.ErrorContains(t, reg.RegisterChannel(c), "already open")

	got, ok := reg.Get(c.Route())
	require.True(t, ok)
	assert.Same(t, c, got)

	assert.Len(t, reg.Routes(), 1)

	reg.Close(c.Route())
	_, ok = reg.Get(c.Route())
	assert.False(t, ok)
}

func TestRegistryStartStop(t *testing.T) {
	reg := NewRegistry(5 * time.Millisecond)
	route := testRoute(t)
	attrs := config.DefaultAttributes()
	c, err := Open(route, Stores{
		Bundle:  memory.New(0),
		Payload: memory.New(0),
		ACS:     memory.New(0),
	}, &attrs, osshim.NewReal(nil), nil)
	require.NoError(t, err)
	require.NoError(t, reg.RegisterChannel(c))

	reg.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, reg.Stop())
}
