package app

import (
	"testing"
	"time"

	"github.com/anhofmann/radio-tracking/internal/storage"
)

func testRecord(device string, at time.Time, freq, snr float64) storage.SignalRecord {
	return storage.SignalRecord{
		DeviceID:  device,
		Time:      at,
		Duration:  20 * time.Millisecond,
		Frequency: freq,
		Bandwidth: 2000,
		SNRDB:     snr,
	}
}

func TestDetectionGrid_Bounds(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	grid, err := NewDetectionGrid(200, 100, []storage.SignalRecord{
		testRecord("sdr0", at, 150_150_000, 40),
		testRecord("sdr1", at.Add(time.Minute), 150_200_000, 55),
	})
	if err != nil {
		t.Fatal(err)
	}

	if !grid.TimeStart.Equal(at) {
		t.Errorf("time start = %s, want %s", grid.TimeStart, at)
	}
	if want := at.Add(time.Minute + 20*time.Millisecond); !grid.TimeEnd.Equal(want) {
		t.Errorf("time end = %s, want %s", grid.TimeEnd, want)
	}
	if grid.FrequencyMin != 150_149_000 || grid.FrequencyMax != 150_201_000 {
		t.Errorf("frequency range = [%f, %f]", grid.FrequencyMin, grid.FrequencyMax)
	}
	if grid.SNRMin != 40 || grid.SNRMax != 55 {
		t.Errorf("snr range = [%f, %f]", grid.SNRMin, grid.SNRMax)
	}
	if grid.Count != 2 {
		t.Errorf("count = %d, want 2", grid.Count)
	}
}

func TestDetectionGrid_PlotsStrongestSNR(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Two overlapping detections: the stronger one wins the cell.
	grid, err := NewDetectionGrid(100, 100, []storage.SignalRecord{
		testRecord("sdr0", at, 150_150_000, 40),
		testRecord("sdr1", at, 150_150_000, 55),
	})
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, row := range grid.Cells {
		for _, cell := range row {
			if cell == nil {
				continue
			}
			found = true
			if *cell != 55 {
				t.Fatalf("cell snr = %f, want 55", *cell)
			}
		}
	}
	if !found {
		t.Fatal("nothing plotted")
	}
}

func TestDetectionGrid_Empty(t *testing.T) {
	if _, err := NewDetectionGrid(100, 100, nil); err == nil {
		t.Error("expected an error for an empty result set")
	}
}

func TestColorMapper_Clamps(t *testing.T) {
	cm := newColorMapper(0, 50)

	low, high := -10.0, 60.0
	if cm.color(&low) != cm.colorMap[0] {
		t.Error("below-range snr must clamp to the first color")
	}
	if cm.color(&high) != cm.colorMap[colorMapSize-1] {
		t.Error("above-range snr must clamp to the last color")
	}
	if cm.color(nil) != noDataColor {
		t.Error("nil snr must map to the no-data color")
	}
}
