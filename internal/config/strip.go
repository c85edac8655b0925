package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/ambilight/internal/types"
	"github.com/smazurov/ambilight/internal/zonemap"
)

// StripSettings is the persisted state of the strip: what the user last
// selected and how the strip is mounted.
type StripSettings struct {
	Mode       types.Mode       `toml:"mode" json:"mode"`
	Color      types.Color      `toml:"color" json:"color"`
	Brightness uint8            `toml:"brightness" json:"brightness"`
	Device     string           `toml:"device" json:"device"`
	Geometry   zonemap.Geometry `toml:"geometry" json:"geometry"`
}

// stripFile is the on-disk layout: everything lives under [strip].
type stripFile struct {
	Version int           `toml:"version"`
	Strip   StripSettings `toml:"strip"`
}

// DefaultStripSettings returns the settings used when nothing is stored.
func DefaultStripSettings() StripSettings {
	return StripSettings{
		Mode:       types.ModeOff,
		Color:      types.Color{R: 255, G: 255, B: 255},
		Brightness: 255,
		Geometry: zonemap.Geometry{
			ScreenWidth:    1920,
			ScreenHeight:   1080,
			HorizontalLeds: 32,
			VerticalLeds:   18,
			Corner:         types.CornerBottomRight,
			Margin:         zonemap.DefaultMargin,
			Thickness:      zonemap.DefaultThickness,
		},
	}
}

// Validate checks the settings the way the controller would.
func (s StripSettings) Validate() error {
	if !s.Mode.Valid() {
		return fmt.Errorf("unknown mode %d", uint8(s.Mode))
	}
	return zonemap.Validate(s.Geometry)
}

// LoadStripSettings reads a settings file. Keys missing from the file keep
// their defaults and a missing file yields the defaults.
func LoadStripSettings(path string) (StripSettings, error) {
	file := stripFile{Version: 1, Strip: DefaultStripSettings()}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return file.Strip, nil
	}
	if err != nil {
		return file.Strip, fmt.Errorf("failed to read strip settings: %w", err)
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return DefaultStripSettings(), fmt.Errorf("failed to parse strip settings: %w", err)
	}
	if err := file.Strip.Validate(); err != nil {
		return DefaultStripSettings(), fmt.Errorf("strip settings %s: %w", path, err)
	}
	return file.Strip, nil
}

// StripStore keeps the strip settings in memory and writes every change
// back to its file.
type StripStore struct {
	path     string
	mu       sync.Mutex
	settings StripSettings
}

// NewStripStore creates a store backed by path. Call Load to read it.
func NewStripStore(path string) *StripStore {
	if path == "" {
		path = "strip.toml"
	}
	return &StripStore{path: path, settings: DefaultStripSettings()}
}

// Path returns the backing file.
func (s *StripStore) Path() string {
	return s.path
}

// Load replaces the in-memory settings with the file contents.
func (s *StripStore) Load() (StripSettings, error) {
	settings, err := LoadStripSettings(s.path)
	if err != nil {
		return s.Get(), err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return settings, nil
}

// Get returns the current settings.
func (s *StripStore) Get() StripSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update applies fn to a copy of the settings and saves the result. The
// in-memory settings only change when the save succeeds.
func (s *StripStore) Update(fn func(*StripSettings)) (StripSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)
	if err := save(s.path, next); err != nil {
		return s.settings, err
	}
	s.settings = next
	return next, nil
}

// Replace stores settings as they are, for reloads that already came from
// the file.
func (s *StripStore) Replace(settings StripSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// save writes settings through a temporary file and a rename, so readers
// and the file watcher never see a partial file.
func save(path string, settings StripSettings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := toml.Marshal(stripFile{Version: 1, Strip: settings})
	if err != nil {
		return fmt.Errorf("failed to marshal strip settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".strip-*.toml")
	if err != nil {
		return fmt.Errorf("failed to write strip settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write strip settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write strip settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace strip settings: %w", err)
	}
	return nil
}
