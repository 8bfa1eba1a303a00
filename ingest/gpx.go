package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/tkrajina/gpxgo/gpx"
)

var (
	ErrUnsupportedFile = errors.New("only .gpx files are supported")
	ErrInvalidGPX      = errors.New("invalid gpx file")
	ErrNoTimedPoints   = errors.New("gpx file has no timestamped points")
)

func IsGPXFilename(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".gpx")
}

// ParseGPX reads a GPX document. The filename becomes the external id.
func ParseGPX(r io.Reader, filename string) (*Activity, error) {
	if !IsGPXFilename(filename) {
		return nil, ErrUnsupportedFile
	}

	doc, err := gpx.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGPX, err)
	}
	if doc.GetTrackPointsNo() == 0 {
		return nil, fmt.Errorf("%w: no track points", ErrInvalidGPX)
	}

	bounds := doc.TimeBounds()
	if bounds.StartTime.IsZero() {
		return nil, ErrNoTimedPoints
	}

	moving := doc.MovingData()
	updown := doc.UphillDownhill()

	a := &Activity{
		ExternalID:     filepath.Base(filename),
		Distance:       roundKm(doc.Length2D()),
		Duration:       secondsToDuration(doc.Duration()),
		MovingDuration: secondsToDuration(moving.MovingTime),
		ElevationGain:  int(math.Round(math.Max(updown.Uphill, 0))),
		StartTime:      bounds.StartTime.UTC(),
	}
	if name := trackName(doc); name != "" {
		a.Name = &name
	}
	return a, nil
}

func trackName(doc *gpx.GPX) string {
	for _, t := range doc.Tracks {
		if n := strings.TrimSpace(t.Name); n != "" {
			return n
		}
	}
	return strings.TrimSpace(doc.Name)
}

func secondsToDuration(s float64) time.Duration {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	return time.Duration(math.Round(s)) * time.Second
}
