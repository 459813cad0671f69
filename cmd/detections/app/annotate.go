package app

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
)

const (
	dpi      float64 = 72
	fontSize float64 = 14
	spacing  float64 = 1.1
)

type annotator struct {
	context *freetype.Context
}

func newAnnotator(fontPath string) (*annotator, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}

	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(fontSize)
	context.SetHinting(font.HintingFull)
	context.SetSrc(image.White)

	return &annotator{context: context}, nil
}

func (a *annotator) annotate(img *image.RGBA, grid *DetectionGrid) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, *DetectionGrid) error
	}{
		{"drawing frequency scale", a.drawFreqScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info", a.drawInfo},
	}
	for _, op := range ops {
		if err := op.fn(img, grid); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) drawFreqScale(img *image.RGBA, grid *DetectionGrid) error {
	count := grid.Width / 250
	if count < 2 {
		count = 2
	}
	hzPerLabel := (grid.FrequencyMax - grid.FrequencyMin) / float64(count)
	pxPerLabel := grid.Width / count

	for si := 0; si < count; si++ {
		hz := grid.FrequencyMin + (float64(si) * hzPerLabel)
		px := si * pxPerLabel

		// guideline on the exact frequency
		for i := 0; i < 30; i++ {
			img.Set(px, i, image.White)
		}

		pt := freetype.Pt(px+5, 17)
		_, _ = a.context.DrawString(a.humanHz(hz), pt)
	}

	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, grid *DetectionGrid) error {
	count := grid.Height / 100
	if count < 2 {
		count = 2
	}
	secsPerLabel := (grid.TimeEnd.Unix() - grid.TimeStart.Unix()) / int64(count)
	pxPerLabel := grid.Height / count

	for si := 0; si < count; si++ {
		px := si * pxPerLabel

		var str string
		if si == 0 {
			str = grid.TimeStart.Format(time.DateTime)
		} else {
			point := grid.TimeStart.Add(time.Duration(secsPerLabel*int64(si)) * time.Second)
			str = point.Format("15:04:05")
		}

		// guideline on the exact time
		for i := 0; i < 75; i++ {
			img.Set(i, px, image.White)
		}

		pt := freetype.Pt(3, px-3)
		_, _ = a.context.DrawString(str, pt)
	}

	return nil
}

func (a *annotator) drawInfo(img *image.RGBA, grid *DetectionGrid) error {
	bandwidth := grid.FrequencyMax - grid.FrequencyMin

	imgSize := img.Bounds().Size()
	top, left := imgSize.Y-80, 3

	strings := []string{
		"Start: " + grid.TimeStart.Format(time.DateTime),
		"End: " + grid.TimeEnd.Format(time.DateTime),
		fmt.Sprintf("Band: %s to %s", a.humanHz(grid.FrequencyMin), a.humanHz(grid.FrequencyMax)),
		fmt.Sprintf("Bandwidth: %s", a.humanHz(bandwidth)),
		fmt.Sprintf("Detections: %s", humanize.Comma(int64(grid.Count))),
	}

	pt := freetype.Pt(left, top)
	for _, s := range strings {
		_, _ = a.context.DrawString(s, pt)
		pt.Y += a.context.PointToFixed(fontSize * spacing)
	}

	return nil
}

func (a *annotator) humanHz(hz float64) string {
	fract, suffix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%0.2f %sHz", fract, suffix)
}
