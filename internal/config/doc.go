// Package config provides runtime settings and the entry registry.
//
// # Settings
//
// Settings are read with viper from an optional settings.yaml in the config
// directory and overridden by MULTICONTROLLER_* environment variables, e.g.
// MULTICONTROLLER_POLL_INTERVAL=1m or MULTICONTROLLER_SERVER_PORT=9000.
//
// # Entry registry
//
// entries.yaml records each configured RainMaker account (host and username)
// with the integration version that created it and the unique ids of its
// entities. MigrateEntry clears those ids when the version changes.
//
// The registry is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/multicontroller/entries.yaml or $HOME/.config/multicontroller/entries.yaml
//   - macOS: $HOME/.config/multicontroller/entries.yaml
//   - Windows: %LOCALAPPDATA%\multicontroller\entries.yaml
//
// # Security
//
// Passwords are never written to disk. They come from the environment or a
// command line flag on every run.
package config
