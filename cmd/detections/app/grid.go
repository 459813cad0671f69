package app

import (
	"errors"
	"time"

	"github.com/anhofmann/radio-tracking/internal/storage"
)

// markerPad widens each detection by a few pixels so short pulses stay
// visible on large canvases.
const markerPad = 1

// DetectionGrid rasterises stored detections onto a frequency (X) by
// time (Y) canvas. Each cell holds the strongest SNR of the detections
// covering it, or nil where nothing was detected.
type DetectionGrid struct {
	Width  int
	Height int

	TimeStart    time.Time
	TimeEnd      time.Time
	FrequencyMin float64
	FrequencyMax float64

	SNRMin float64
	SNRMax float64

	Cells [][]*float64
	Count int
}

func NewDetectionGrid(width, height int, signals []storage.SignalRecord) (*DetectionGrid, error) {
	if len(signals) == 0 {
		return nil, errors.New("no detections to render")
	}

	g := &DetectionGrid{
		Width:  width,
		Height: height,
		Cells:  make([][]*float64, height),
	}
	for y := range g.Cells {
		g.Cells[y] = make([]*float64, width)
	}

	g.TimeStart = signals[0].Time
	g.TimeEnd = signals[0].Time.Add(signals[0].Duration)
	g.FrequencyMin = signals[0].Frequency - signals[0].Bandwidth/2
	g.FrequencyMax = signals[0].Frequency + signals[0].Bandwidth/2
	g.SNRMin = signals[0].SNRDB
	g.SNRMax = signals[0].SNRDB

	for _, sig := range signals[1:] {
		if sig.Time.Before(g.TimeStart) {
			g.TimeStart = sig.Time
		}
		if end := sig.Time.Add(sig.Duration); end.After(g.TimeEnd) {
			g.TimeEnd = end
		}
		if lo := sig.Frequency - sig.Bandwidth/2; lo < g.FrequencyMin {
			g.FrequencyMin = lo
		}
		if hi := sig.Frequency + sig.Bandwidth/2; hi > g.FrequencyMax {
			g.FrequencyMax = hi
		}
		if sig.SNRDB < g.SNRMin {
			g.SNRMin = sig.SNRDB
		}
		if sig.SNRDB > g.SNRMax {
			g.SNRMax = sig.SNRDB
		}
	}

	for _, sig := range signals {
		g.plot(sig)
	}
	g.Count = len(signals)
	return g, nil
}

func (g *DetectionGrid) plot(sig storage.SignalRecord) {
	x0 := g.freqToX(sig.Frequency-sig.Bandwidth/2) - markerPad
	x1 := g.freqToX(sig.Frequency+sig.Bandwidth/2) + markerPad
	y0 := g.timeToY(sig.Time) - markerPad
	y1 := g.timeToY(sig.Time.Add(sig.Duration)) + markerPad

	for y := max(y0, 0); y <= min(y1, g.Height-1); y++ {
		for x := max(x0, 0); x <= min(x1, g.Width-1); x++ {
			if cell := g.Cells[y][x]; cell == nil || *cell < sig.SNRDB {
				snr := sig.SNRDB
				g.Cells[y][x] = &snr
			}
		}
	}
}

func (g *DetectionGrid) freqToX(hz float64) int {
	span := g.FrequencyMax - g.FrequencyMin
	if span <= 0 {
		return g.Width / 2
	}
	return int((hz - g.FrequencyMin) / span * float64(g.Width-1))
}

func (g *DetectionGrid) timeToY(t time.Time) int {
	span := g.TimeEnd.Sub(g.TimeStart)
	if span <= 0 {
		return g.Height / 2
	}
	return int(float64(t.Sub(g.TimeStart)) / float64(span) * float64(g.Height-1))
}
