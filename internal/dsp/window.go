package dsp

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/window"
)

const (
	// WindowBoxcar is the default window function.
	WindowBoxcar          Window = "boxcar"
	WindowHann            Window = "hann"
	WindowHamming         Window = "hamming"
	WindowBlackman        Window = "blackman"
	WindowBlackmanHarris  Window = "blackman-harris"
	WindowBlackmanNuttall Window = "blackman-nuttall"
	WindowNuttall         Window = "nuttall"
	WindowFlatTop         Window = "flattop"
	WindowLanczos         Window = "lanczos"
	WindowSine            Window = "sine"
)

var windowFuncs = map[Window]func([]float64) []float64{
	WindowHann:            window.Hann,
	WindowHamming:         window.Hamming,
	WindowBlackman:        window.Blackman,
	WindowBlackmanHarris:  window.BlackmanHarris,
	WindowBlackmanNuttall: window.BlackmanNuttall,
	WindowNuttall:         window.Nuttall,
	WindowFlatTop:         window.FlatTop,
	WindowLanczos:         window.Lanczos,
	WindowSine:            window.Sine,
}

// Window names an FFT window function.
type Window string

func (w Window) String() string {
	return string(w)
}

// Valid reports whether the window name is supported.
func (w Window) Valid() bool {
	if w == WindowBoxcar {
		return true
	}
	_, ok := windowFuncs[w]
	return ok
}

// Coefficients returns the window taper of length n.
func (w Window) Coefficients(n int) ([]float64, error) {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1
	}

	if w == WindowBoxcar {
		return coeffs, nil
	}

	fn, ok := windowFuncs[w]
	if !ok {
		return nil, fmt.Errorf("dsp: unknown window function '%s'", w)
	}
	return fn(coeffs), nil
}
