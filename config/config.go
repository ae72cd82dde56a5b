// Package config holds the clock's persisted settings.  The on-disk
// format is the same config.json the original device writes, so a config
// file can move between the two.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config is the full set of user-adjustable settings.
type Config struct {
	// Timezone is a POSIX TZ rule string, e.g. "CET-1CEST,M3.5.0,M10.5.0/3".
	Timezone  string `json:"timezone"`
	NTPServer string `json:"ntpServer"`
	// NTPSyncInterval is the number of minutes between resyncs.
	NTPSyncInterval uint32 `json:"ntpSyncInterval"`

	Brightness uint8  `json:"brightness"`
	Color      string `json:"color"`
	BlinkDots  bool   `json:"blinkDots"`

	Use24h             bool `json:"use24h"`
	HideLeadingZero24h bool `json:"hideLeadingZero24h"`

	AutoDim      bool  `json:"autoDim"`
	DimStartHour uint8 `json:"dimStart"`
	DimEndHour   uint8 `json:"dimEnd"`
}

// Default returns the compiled-in settings used when no config file
// exists yet.
func Default() Config {
	return Config{
		Timezone:           "CET-1CEST,M3.5.0,M10.5.0/3",
		NTPServer:          "pool.ntp.org",
		NTPSyncInterval:    60,
		Brightness:         50,
		Color:              "#FF0000",
		BlinkDots:          true,
		Use24h:             false,
		HideLeadingZero24h: false,
		AutoDim:            true,
		DimStartHour:       22,
		DimEndHour:         6,
	}
}

// Store is the single process-wide configuration instance.  The web
// handler mutates it, the render loop reads it; the lock guarantees a
// render pass sees either all of an update or none of it.
type Store struct {
	path string

	mu sync.RWMutex
	c  Config
}

// Open loads the config at path, or starts from defaults if the file
// does not exist yet.  A missing file is not an error.
func Open(path string) (*Store, error) {
	s := &Store{path: path, c: Default()}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Decode over the defaults so fields absent from an older file keep
	// their default values.
	if err := json.Unmarshal(data, &s.c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return s, nil
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c
}

// Update applies f to the settings and persists the result.  The update
// is visible to readers only once f has returned.
func (s *Store) Update(f func(*Config)) error {
	s.mu.Lock()
	f(&s.c)
	c := s.c
	s.mu.Unlock()
	return save(s.path, c)
}

func save(path string, c Config) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ParseColor converts a "#RRGGBB" string to a 24-bit RGB value.  The
// leading '#' is optional.  Malformed input yields 0 (black); a bad
// stored color turns the display off rather than erroring.
func ParseColor(s string) uint32 {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || v > 0xffffff {
		return 0
	}
	return uint32(v)
}
