// Package tagio reads and writes audio file tags, consolidating metadata
// handling for MP3 (ID3v2) and FLAC (Vorbis comments) behind one interface.
package tagio

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Override92/tid3/internal/event"
	"github.com/Override92/tid3/internal/track"
)

// Supported file extensions.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
)

// IsSupported reports whether the path has a supported audio extension.
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMP3, ExtFLAC:
		return true
	default:
		return false
	}
}

// Codec reads and writes tags for one file format.
type Codec interface {
	// Read parses the file at path into a LocalTrack.
	Read(path string) (*track.LocalTrack, error)

	// Write persists the track's tag fields to the file at track.Path.
	Write(tr *track.LocalTrack) error
}

// Service dispatches tag operations to the codec for the file's format.
type Service struct {
	mp3    Codec
	flac   Codec
	bus    *event.Bus
	logger *slog.Logger
}

// NewService creates a tag service with the default MP3 and FLAC codecs.
func NewService(bus *event.Bus, logger *slog.Logger) *Service {
	return &Service{
		mp3:    &mp3Codec{},
		flac:   &flacCodec{},
		bus:    bus,
		logger: logger.With(slog.String("component", "tagio")),
	}
}

// Read loads the tags of the audio file at path into a LocalTrack.
func (s *Service) Read(path string) (*track.LocalTrack, error) {
	codec, err := s.codecFor(path)
	if err != nil {
		return nil, err
	}
	tr, err := codec.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading tags from %s: %w", path, err)
	}
	return tr, nil
}

// Write saves the track's tag fields back to its file and publishes a
// TagsSaved event on success.
func (s *Service) Write(tr *track.LocalTrack) error {
	codec, err := s.codecFor(tr.Path)
	if err != nil {
		return err
	}
	if err := codec.Write(tr); err != nil {
		return fmt.Errorf("writing tags to %s: %w", tr.Path, err)
	}

	s.logger.Info("tags saved", slog.String("path", tr.Path))
	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.TagsSaved,
			Data: map[string]any{"track_path": tr.Path},
		})
	}
	return nil
}

func (s *Service) codecFor(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMP3:
		return s.mp3, nil
	case ExtFLAC:
		return s.flac, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}
