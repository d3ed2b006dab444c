package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundstation/bplib/pkg/bpstatus"
	"github.com/groundstation/bplib/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Channels = []config.ChannelConfig{
		{Local: "ipn:1.1", Remote: "ipn:2.1", Attributes: config.DefaultAttributes()},
		{Local: "ipn:1.1", Remote: "ipn:3.1", Attributes: config.DefaultAttributes()},
	}
	return cfg
}

func TestFindChannelConfigDefaultsToFirst(t *testing.T) {
	local, remote = "", ""
	cfg := testConfig()

	cc, err := findChannelConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ipn:2.1", cc.Remote)
}

func TestFindChannelConfigMatchesRemote(t *testing.T) {
	local, remote = "", "ipn:3.1"
	defer func() { local, remote = "", "" }()
	cfg := testConfig()

	cc, err := findChannelConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ipn:3.1", cc.Remote)
}

func TestFindChannelConfigNoMatch(t *testing.T) {
	local, remote = "", "ipn:9.1"
	defer func() { local, remote = "", "" }()
	cfg := testConfig()

	_, err := findChannelConfig(cfg)
	assert.Error(t, err)
}

func TestFindChannelConfigEmptyChannels(t *testing.T) {
	local, remote = "", ""
	cfg := config.DefaultConfig()

	_, err := findChannelConfig(cfg)
	assert.Error(t, err)
}

func TestOpenChannelStoreLoadProcessAccept(t *testing.T) {
	local, remote = "", ""
	cfg := testConfig()
	cfg.Channels[0].Attributes.RequestCustody = true

	ctx := context.Background()
	sender, err := openChannel(ctx, cfg)
	require.NoError(t, err)

	status, _ := sender.Store(ctx, []byte("cli payload"), 0)
	require.Equal(t, bpstatus.Success, status)

	encoded, status, _ := sender.Load(ctx, nil, 0)
	require.Equal(t, bpstatus.Success, status)
	require.NotEmpty(t, encoded)

	local, remote = "", "ipn:3.1"
	defer func() { local, remote = "", "" }()
	receiver, err := openChannel(ctx, cfg)
	require.NoError(t, err)

	status, _ = receiver.Process(ctx, encoded, 0)
	assert.Equal(t, bpstatus.PendingCustodyTransfer, status)

	payload, status := receiver.Accept(ctx, nil, 0)
	require.Equal(t, bpstatus.Success, status)
	assert.Equal(t, "cli payload", string(payload))
}
