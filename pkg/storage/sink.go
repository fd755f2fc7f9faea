// Package storage writes captured elementary streams to per-track files.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crlane/mebo/pkg/sdp"
)

// ErrInvalidOutputDir indicates the output directory is invalid
var ErrInvalidOutputDir = errors.New("invalid output directory")

// Stats holds counters for one track sink.
type Stats struct {
	Writes     int64
	TotalBytes int64
}

// TrackSink is an append-only elementary-stream file for one media track:
// an Annex-B byte stream for video, raw codec samples for audio.
type TrackSink struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	stats Stats
}

// extension maps a media type to its elementary-stream file extension.
func extension(media string) string {
	if media == "video" {
		return "h264"
	}
	return "g711a"
}

// Filename renders the per-track output file name,
// e.g. "video_RTP.AVP_96.track0.h264".
func Filename(desc *sdp.MediaDescriptor) (string, error) {
	control, err := desc.Control()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s.%s", desc.Label(), control, extension(desc.Name)), nil
}

// NewTrackSink creates the output file for a track under dir.
func NewTrackSink(dir string, desc *sdp.MediaDescriptor) (*TrackSink, error) {
	if dir == "" {
		return nil, ErrInvalidOutputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutputDir, err)
	}

	name, err := Filename(desc)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create track file %s: %w", path, err)
	}

	return &TrackSink{file: file, path: path}, nil
}

// Write appends stream bytes to the track file.
func (s *TrackSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.file.Write(p)
	if err != nil {
		return n, err
	}
	s.stats.Writes++
	s.stats.TotalBytes += int64(n)
	return n, nil
}

// Path returns the location of the track file.
func (s *TrackSink) Path() string {
	return s.path
}

// Stats returns a snapshot of the sink counters.
func (s *TrackSink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close flushes and closes the track file.
func (s *TrackSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
