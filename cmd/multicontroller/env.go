package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/config"
	"github.com/muurk/multicontroller/internal/integration"
	"github.com/muurk/multicontroller/internal/logging"
	"github.com/muurk/multicontroller/internal/ui"
)

// settings is decoded once per invocation in PersistentPreRunE
var settings *config.Settings

// flagKeys maps command line flags to settings keys. Only flags defined on the
// running command are bound.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"password":        "rainmaker.password",
	"host":            "rainmaker.host",
	"request-timeout": "rainmaker.timeout",
	"username":        "rainmaker.username",
	"interval":        "poll.interval",
	"listen":          "server.host",
	"port":            "server.port",
	"token-secret":    "server.token_secret",
	"token-ttl":       "server.token_ttl",
	"advertise":       "discovery.advertise",
}

func bindSettings(flags *pflag.FlagSet, path string) (*config.Settings, error) {
	v := config.NewViper()
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
			}
		}
	}
	if err := config.ReadSettingsFile(v, path); err != nil {
		return nil, err
	}
	return config.Decode(v)
}

func initLogging(cmd *cobra.Command) error {
	s, err := bindSettings(cmd.Flags(), settingsPath)
	if err != nil {
		return err
	}
	settings = s
	if err := logging.Initialize(s.Log.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

func newPrinter(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(cmd.OutOrStdout()).SetJSON(jsonOutput)
}

// selectEntry picks the entry named by id, or the only configured entry
func selectEntry(reg *config.Registry, id string) (string, *config.Entry, error) {
	if id != "" {
		entry := reg.GetEntry(id)
		if entry == nil {
			return "", nil, fmt.Errorf("entry %q not found", id)
		}
		return id, entry, nil
	}

	ids := reg.EntryIDs()
	switch len(ids) {
	case 0:
		return "", nil, errors.New("no account configured; run 'multicontroller login' first")
	case 1:
		return ids[0], reg.GetEntry(ids[0]), nil
	default:
		return "", nil, fmt.Errorf("%d accounts configured; choose one with --entry", len(ids))
	}
}

func requirePassword() (string, error) {
	if settings.RainMaker.Password == "" {
		return "", errors.New("password required: set MULTICONTROLLER_RAINMAKER_PASSWORD or pass --password")
	}
	return settings.RainMaker.Password, nil
}

// openRuntime sets up the selected entry and persists the entities it
// registered. Polling is not started.
func openRuntime(ctx context.Context) (*integration.Runtime, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}
	id, entry, err := selectEntry(reg, entryFlag)
	if err != nil {
		return nil, err
	}
	password, err := requirePassword()
	if err != nil {
		return nil, err
	}

	rt, err := integration.Setup(ctx, id, entry, password, integration.Options{
		Timeout:  settings.RainMaker.Timeout,
		Interval: settings.Poll.Interval,
	})
	if err != nil {
		return nil, err
	}

	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save entry registry", zap.Error(err))
	}
	return rt, nil
}
