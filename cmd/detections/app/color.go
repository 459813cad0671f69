package app

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	colorMapSize = 256

	// SNR sweeps hue from deep blue (weak) to red (strong).
	hueStart = 236.0
	hueEnd   = 0.0
)

var noDataColor = color.Black

// colorMapper pre-computes an SNR to colour lookup table so that the
// per-pixel cost of rendering is a single index operation.
type colorMapper struct {
	colorMap   []color.Color
	snrMin     float64
	snrPerStep float64
}

func newColorMapper(snrMin, snrMax float64) *colorMapper {
	cm := &colorMapper{
		colorMap: make([]color.Color, colorMapSize),
		snrMin:   snrMin,
	}
	if snrMax <= snrMin {
		snrMax = snrMin + 1
	}
	cm.snrPerStep = (snrMax - snrMin) / float64(colorMapSize-1)

	for i := range cm.colorMap {
		normalized := float64(i) / float64(colorMapSize-1)
		hue := hueStart - normalized*(hueStart-hueEnd)
		cm.colorMap[i] = colorful.Hsv(hue, 1, 0.90)
	}
	return cm
}

func (cm *colorMapper) color(snr *float64) color.Color {
	if snr == nil {
		return noDataColor
	}

	index := int((*snr - cm.snrMin) / cm.snrPerStep)
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= colorMapSize {
		return cm.colorMap[colorMapSize-1]
	}
	return cm.colorMap[index]
}
