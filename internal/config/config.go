/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	applog "patchup/internal/log"
	"patchup/internal/style"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type CanvasConfig struct {
	// MaxPolygons caps how many polygons one population may hold.
	MaxPolygons int `yaml:"max_polygons"`
	// AnnotateWidth is the width background images are fitted to.
	AnnotateWidth int  `yaml:"annotate_width"`
	Fabric        bool `yaml:"fabric"`
}

type HistoryConfig struct {
	MaxDepth int `yaml:"max_depth"` // 0 = unlimited
	// Journal is the SQLite file committed snapshots are appended to; empty disables it.
	Journal     string `yaml:"journal"`
	JournalKeep int    `yaml:"journal_keep"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Style         style.Style   `yaml:"style"`
	History       HistoryConfig `yaml:"history"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Canvas:        CanvasConfig{MaxPolygons: 30, AnnotateWidth: 800, Fabric: false},
		Style:         style.Default(),
		History:       HistoryConfig{MaxDepth: 0, Journal: "", JournalKeep: 200},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvMaxPolygons   = "PU_MAX_POLYGONS"
	EnvAnnotateWidth = "PU_ANNOTATE_WIDTH"
	EnvFabric        = "PU_FABRIC"
	EnvHistoryDepth  = "PU_HISTORY_DEPTH"
	EnvJournal       = "PU_JOURNAL"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "PU_LOG_LEVEL"
	EnvLogFormat = "PU_LOG_FORMAT"
	EnvLogSource = "PU_LOG_SOURCE"
	EnvLogFile   = "PU_LOG_FILE"
	// EnvConfigFile points Load at a file other than the per-user one.
	EnvConfigFile = "PU_CONFIG"
)

// ConfigPath returns the per-user config file path, or the PU_CONFIG override.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			home, err := homedir.Dir()
			if err != nil {
				return "", fmt.Errorf("resolve home: %w", err)
			}
			base = filepath.Join(home, "AppData", "Roaming")
		}
		base = filepath.Join(base, "PatchUp")
	case "darwin":
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("resolve home: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support", "PatchUp")
	default: // linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "patchup")
			break
		}
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("resolve home: %w", err)
		}
		base = filepath.Join(home, ".config", "patchup")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path. A missing file yields the defaults;
// a malformed one is an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		applyEnvOverrides(&cfg)
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

func SaveFile(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Canvas.MaxPolygons > 0 {
		dst.Canvas.MaxPolygons = src.Canvas.MaxPolygons
	}
	if src.Canvas.AnnotateWidth > 0 {
		dst.Canvas.AnnotateWidth = src.Canvas.AnnotateWidth
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Canvas.Fabric = src.Canvas.Fabric
	dst.Style = dst.Style.Merge(src.Style)
	if src.History.MaxDepth > 0 {
		dst.History.MaxDepth = src.History.MaxDepth
	}
	if strings.TrimSpace(src.History.Journal) != "" {
		dst.History.Journal = strings.TrimSpace(src.History.Journal)
	}
	if src.History.JournalKeep > 0 {
		dst.History.JournalKeep = src.History.JournalKeep
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvMaxPolygons)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Canvas.MaxPolygons = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAnnotateWidth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Canvas.AnnotateWidth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvFabric)); v != "" {
		cfg.Canvas.Fabric = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryDepth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.History.MaxDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvJournal)); v != "" {
		cfg.History.Journal = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"canvas.max_polygons":   EnvMaxPolygons,
		"canvas.annotate_width": EnvAnnotateWidth,
		"canvas.fabric":         EnvFabric,
		"history.max_depth":     EnvHistoryDepth,
		"history.journal":       EnvJournal,
		"logging.level":         EnvLogLevel,
		"logging.format":        EnvLogFormat,
		"logging.source":        EnvLogSource,
		"logging.file":          EnvLogFile,
	}
	if env, ok := names[key]; ok && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// LogOptions converts the logging section into logger options.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}

// Watch reloads path whenever it changes on disk and hands the new config to
// fn until ctx is done. The parent directory is watched so editors that save
// by rename are picked up. Reload errors are logged and skipped.
func Watch(ctx context.Context, path string, fn func(AppConfig)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	l := applog.WithOperation(applog.WithComponent("config"), "watch")
	go func() {
		defer func() { _ = w.Close() }()
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				cfg, err := LoadFile(path)
				if err != nil {
					l.Warn("config reload failed", slog.String("path", path), slog.Any("err", err))
					continue
				}
				l.Debug("config reloaded", slog.String("path", path))
				fn(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.Error("config watcher error", slog.Any("err", err))
			}
		}
	}()
	return nil
}
