package commands

import (
	"context"
	"fmt"

	"github.com/groundstation/bplib/internal/logger"
	"github.com/groundstation/bplib/pkg/bpstats"
	"github.com/groundstation/bplib/pkg/channel"
	"github.com/groundstation/bplib/pkg/config"
	"github.com/groundstation/bplib/pkg/eid"
	"github.com/groundstation/bplib/pkg/osshim"
)

// findChannelConfig picks the ChannelConfig the --local/--remote flags
// (or the first configured channel, if neither is set) refer to.
func findChannelConfig(cfg *config.Config) (*config.ChannelConfig, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("no channels configured; run 'bpctl init' or edit %s", config.DefaultConfigPath())
	}

	if local == "" && remote == "" {
		return &cfg.Channels[0], nil
	}

	for i := range cfg.Channels {
		cc := &cfg.Channels[i]
		if (local == "" || cc.Local == local) && (remote == "" || cc.Remote == remote) {
			return cc, nil
		}
	}
	return nil, fmt.Errorf("no configured channel matches local=%q remote=%q", local, remote)
}

// openStores builds the three storage.Queue handles a channel needs,
// namespacing badger/S3/postgres backends by route so multiple channels
// sharing one storage.Type don't collide on the same directory, key
// prefix, or queue_name row.
func openStores(ctx context.Context, storageCfg config.StorageConfig, route eid.Route) (channel.Stores, error) {
	bundle, err := config.NewQueue(ctx, withNamespace(storageCfg, route, "bundle"))
	if err != nil {
		return channel.Stores{}, fmt.Errorf("open bundle store: %w", err)
	}
	payload, err := config.NewQueue(ctx, withNamespace(storageCfg, route, "payload"))
	if err != nil {
		return channel.Stores{}, fmt.Errorf("open payload store: %w", err)
	}
	acsQueue, err := config.NewQueue(ctx, withNamespace(storageCfg, route, "acs"))
	if err != nil {
		return channel.Stores{}, fmt.Errorf("open acs store: %w", err)
	}
	return channel.Stores{Bundle: bundle, Payload: payload, ACS: acsQueue}, nil
}

func withNamespace(cfg config.StorageConfig, route eid.Route, kind string) config.StorageConfig {
	ns := fmt.Sprintf("%s/%s", route.String(), kind)
	switch cfg.Type {
	case "badger":
		cfg.Badger.Dir = cfg.Badger.Dir + "/" + ns
	case "s3":
		cfg.S3.KeyPrefix = cfg.S3.KeyPrefix + ns + "/"
	case "postgres":
		cfg.Postgres.QueueName = ns
	}
	return cfg
}

// openChannel resolves the configured channel matching the --local/
// --remote flags (or the first configured channel) and opens it.
func openChannel(ctx context.Context, cfg *config.Config) (*channel.Channel, error) {
	cc, err := findChannelConfig(cfg)
	if err != nil {
		return nil, err
	}
	return openConfiguredChannel(ctx, cfg, *cc)
}

// openConfiguredChannel opens a single channel from an already-loaded
// Config's ChannelConfig, bypassing the --local/--remote flag matching
// findChannelConfig does for the single-channel commands.
func openConfiguredChannel(ctx context.Context, cfg *config.Config, cc config.ChannelConfig) (*channel.Channel, error) {
	localEID, err := eid.Parse(cc.Local)
	if err != nil {
		return nil, fmt.Errorf("parse local EID %q: %w", cc.Local, err)
	}
	remoteEID, err := eid.Parse(cc.Remote)
	if err != nil {
		return nil, fmt.Errorf("parse remote EID %q: %w", cc.Remote, err)
	}
	route := eid.Route{Local: localEID, Remote: remoteEID}

	stores, err := openStores(ctx, cfg.Storage, route)
	if err != nil {
		return nil, err
	}

	attrs := cc.Attributes
	return channel.Open(route, stores, &attrs, newShimOS(), bpstats.NewCollector())
}

// newShimOS builds the production OS shim, routing its advisory log
// calls through the module's structured logger.
func newShimOS() osshim.OS {
	return osshim.NewReal(func(level osshim.Level, msg string) {
		switch level {
		case osshim.LevelDebug:
			logger.Debug(msg)
		case osshim.LevelWarn:
			logger.Warn(msg)
		case osshim.LevelError:
			logger.Error(msg)
		default:
			logger.Info(msg)
		}
	})
}
