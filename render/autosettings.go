package render

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wsiserve/wsiserve/wsi"
)

// Automatic estimation of a channel's display intensity window from the
// pixel statistics of one coarsest-level tile.  Both methods return bounds on
// the raw intensity scale; callers normalize by the bit depth.

// DefaultSaturationFraction is the histogram tail fraction tolerated as
// saturated on each end.
const DefaultSaturationFraction = 0.0005

// Gaussian-mixture defaults.
const (
	DefaultGMMComponents  = 3
	DefaultGMMSubsampling = 3
	DefaultGMMSigmas      = 2.0
)

// AutoHistogram computes a [min, max] intensity range from the tile's
// intensity histogram over its native bit depth, cutting off the given
// saturated fraction on each tail.
func AutoHistogram(im *Image, saturation float64) (float64, float64) {
	if saturation <= 0 {
		saturation = DefaultSaturationFraction
	}
	bins := int(uint32(1) << im.BitDepth)
	counts := make([]int, bins)
	for _, s := range im.Pix {
		counts[s]++
	}
	total := len(im.Pix)
	cutoff := float64(total) * saturation

	min := 0
	cum := 0.0
	for i, c := range counts {
		cum += float64(c)
		if cum > cutoff {
			min = i
			break
		}
	}
	max := bins - 1
	cum = 0.0
	for i := bins - 1; i >= 0; i-- {
		cum += float64(counts[i])
		if cum > cutoff {
			max = i
			break
		}
	}
	if max < min {
		max = min
	}
	return float64(min), float64(max)
}

// AutoGaussian fits a Gaussian mixture to a spatially subsampled set of pixel
// intensities and derives bounds at nSigmas around the component judged
// representative of signal (the highest-mean component; background and
// saturation artifacts dominate the lower-mean ones).
func AutoGaussian(im *Image, nComponents, subsampling int, nSigmas float64) (float64, float64, error) {
	if nComponents <= 0 {
		nComponents = DefaultGMMComponents
	}
	if subsampling <= 0 {
		subsampling = DefaultGMMSubsampling
	}
	if nSigmas <= 0 {
		nSigmas = DefaultGMMSigmas
	}

	var samples []float64
	for y := 0; y < im.Height; y += subsampling {
		for x := 0; x < im.Width; x += subsampling {
			samples = append(samples, float64(im.Pix[y*im.Width+x]))
		}
	}
	if len(samples) < nComponents*2 {
		return 0, 0, wsi.Invalidf("too few samples (%d) for %d-component fit", len(samples), nComponents)
	}

	mix, err := fitMixture(samples, nComponents)
	if err != nil {
		return 0, 0, err
	}

	signal := 0
	for k := 1; k < nComponents; k++ {
		if mix.mean[k] > mix.mean[signal] {
			signal = k
		}
	}
	min := mix.mean[signal] - nSigmas*mix.stddev[signal]
	max := mix.mean[signal] + nSigmas*mix.stddev[signal]
	full := float64(im.MaxValue())
	if min < 0 {
		min = 0
	}
	if max > full {
		max = full
	}
	return min, max, nil
}

type mixture struct {
	weight []float64
	mean   []float64
	stddev []float64
}

const (
	emMaxIterations = 100
	emTolerance     = 1e-6
)

// fitMixture runs expectation-maximization for a 1-D Gaussian mixture.
// Means start at evenly spaced quantiles of the data, variances at the
// overall variance, weights uniform.
func fitMixture(samples []float64, k int) (*mixture, error) {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	mix := &mixture{
		weight: make([]float64, k),
		mean:   make([]float64, k),
		stddev: make([]float64, k),
	}
	overall := stat.StdDev(samples, nil)
	if overall == 0 {
		overall = 1
	}
	for j := 0; j < k; j++ {
		mix.weight[j] = 1 / float64(k)
		mix.mean[j] = stat.Quantile(float64(j+1)/float64(k+1), stat.Empirical, sorted, nil)
		mix.stddev[j] = overall
	}

	n := len(samples)
	resp := make([]float64, k) // responsibilities for one sample
	sumResp := make([]float64, k)
	sumX := make([]float64, k)
	sumXX := make([]float64, k)

	prevLL := 0.0
	for iter := 0; iter < emMaxIterations; iter++ {
		for j := 0; j < k; j++ {
			sumResp[j], sumX[j], sumXX[j] = 0, 0, 0
		}
		ll := 0.0
		for _, x := range samples {
			for j := 0; j < k; j++ {
				norm := distuv.Normal{Mu: mix.mean[j], Sigma: mix.stddev[j]}
				resp[j] = mix.weight[j] * norm.Prob(x)
			}
			total := floats.Sum(resp)
			if total <= 0 {
				continue
			}
			ll += math.Log(total)
			for j := 0; j < k; j++ {
				r := resp[j] / total
				sumResp[j] += r
				sumX[j] += r * x
				sumXX[j] += r * x * x
			}
		}
		for j := 0; j < k; j++ {
			if sumResp[j] <= 0 {
				continue
			}
			mix.weight[j] = sumResp[j] / float64(n)
			mix.mean[j] = sumX[j] / sumResp[j]
			variance := sumXX[j]/sumResp[j] - mix.mean[j]*mix.mean[j]
			if variance < 1e-9 {
				variance = 1e-9
			}
			mix.stddev[j] = math.Sqrt(variance)
		}
		if iter > 0 && math.Abs(ll-prevLL) < emTolerance*math.Abs(prevLL) {
			break
		}
		prevLL = ll
	}
	return mix, nil
}
