// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg resolves XDG Base Directory paths for izou.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "izou"

// ConfigFileName is the configuration file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for izou.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns the path of the per-user configuration file.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// ResolveConfigFile returns explicit when set. Otherwise it returns
// DefaultConfigFile if that file exists, or "" to run on defaults.
func ResolveConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	path := DefaultConfigFile()
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path
	}
	return ""
}
