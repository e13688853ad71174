package feature

import (
	"math"

	"github.com/trogers1052/market-forecast/internal/errs"
)

// NumFeatures is the number of columns per timestep: close and volume
const NumFeatures = 2

// Shape is the model input shape
type Shape struct {
	Timesteps   int `json:"timesteps"`
	NumFeatures int `json:"num_features"`
}

// Len is the flattened vector length of the shape
func (s Shape) Len() int {
	return s.Timesteps * s.NumFeatures
}

// Window holds the close and volume columns of consecutive trading days, oldest first
type Window struct {
	Close  []float64
	Volume []float64
}

// Len returns the number of timesteps in the window
func (w Window) Len() int {
	return len(w.Close)
}

// FitStats are the per-column statistics a window was standardized with.
// They must be passed back into Destandardize for values derived from that window.
type FitStats struct {
	CloseMean  float64 `json:"close_mean"`
	CloseStd   float64 `json:"close_std"`
	VolumeMean float64 `json:"volume_mean"`
	VolumeStd  float64 `json:"volume_std"`
}

// Standardize z-scores each column of w and flattens it row major as
// close1, volume1, ..., closeN, volumeN.
func Standardize(w Window, shape Shape) ([]float64, FitStats, error) {
	if shape.NumFeatures != NumFeatures || len(w.Volume) != len(w.Close) {
		return nil, FitStats{}, &errs.FeatureLengthError{Got: len(w.Close) * NumFeatures, Want: shape.Len()}
	}
	if got := w.Len() * NumFeatures; got != shape.Len() {
		return nil, FitStats{}, &errs.FeatureLengthError{Got: got, Want: shape.Len()}
	}

	var fit FitStats
	fit.CloseMean, fit.CloseStd = meanStd(w.Close)
	fit.VolumeMean, fit.VolumeStd = meanStd(w.Volume)

	out := make([]float64, 0, shape.Len())
	for i := range w.Close {
		out = append(out,
			(w.Close[i]-fit.CloseMean)/fit.CloseStd,
			(w.Volume[i]-fit.VolumeMean)/fit.VolumeStd,
		)
	}
	return out, fit, nil
}

// Destandardize maps a standardized close back to price units
func Destandardize(scaled float64, fit FitStats) float64 {
	return scaled*fit.CloseStd + fit.CloseMean
}

// meanStd returns the mean and population standard deviation of values.
// A zero deviation is reported as 1 so constant columns standardize to 0.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 1
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(values)))
	if std == 0 {
		std = 1
	}
	return mean, std
}
