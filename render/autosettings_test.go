package render

import (
	"testing"
)

func TestAutoHistogram(t *testing.T) {
	// 100x100 8-bit tile: tails at 10 and 200 big enough to clear the
	// saturation cutoff (0.0005 * 10000 = 5), plus outliers below it.
	im := NewImage(100, 100, 8)
	i := 0
	put := func(value uint16, n int) {
		for j := 0; j < n; j++ {
			im.Pix[i] = value
			i++
		}
	}
	put(0, 3)    // below cutoff, ignored
	put(10, 6)   // true low tail
	put(100, len(im.Pix)-18)
	put(200, 6)  // true high tail
	put(255, 3)  // below cutoff, ignored

	min, max := AutoHistogram(im, 0)
	if min != 10 {
		t.Errorf("min = %v, want 10", min)
	}
	if max != 200 {
		t.Errorf("max = %v, want 200", max)
	}
}

func TestAutoHistogramFlat(t *testing.T) {
	im := NewImage(10, 10, 8)
	for i := range im.Pix {
		im.Pix[i] = 50
	}
	min, max := AutoHistogram(im, 0)
	if min != 50 || max != 50 {
		t.Errorf("flat tile bounds = [%v, %v], want [50, 50]", min, max)
	}
}

func TestAutoHistogram16Bit(t *testing.T) {
	im := NewImage(32, 32, 16)
	for i := range im.Pix {
		im.Pix[i] = uint16(i * 30)
	}
	min, max := AutoHistogram(im, 0)
	if min < 0 || max > 65535 || min > max {
		t.Errorf("bounds [%v, %v] outside 16-bit range", min, max)
	}
}

func TestAutoGaussian(t *testing.T) {
	// Bimodal 16-bit tile: dim background and a bright signal cluster.  The
	// bounds should bracket the signal cluster, not the background.
	im := NewImage(30, 30, 16)
	for i := range im.Pix {
		if i%2 == 0 {
			im.Pix[i] = uint16(100 + i%50)
		} else {
			im.Pix[i] = uint16(9000 + (i%5)*500)
		}
	}
	min, max, err := AutoGaussian(im, 0, 0, 0)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if min < 0 || max > 65535 {
		t.Errorf("bounds [%v, %v] outside intensity range", min, max)
	}
	if min >= max {
		t.Errorf("bounds [%v, %v] are not an interval", min, max)
	}
	if max < 9000 {
		t.Errorf("max = %v, expected to reach the signal cluster", max)
	}
	if min < 1000 {
		t.Errorf("min = %v, expected to exclude the background cluster", min)
	}
}

func TestAutoGaussianTooFewSamples(t *testing.T) {
	im := NewImage(2, 2, 8)
	if _, _, err := AutoGaussian(im, 3, 3, 2); err == nil {
		t.Errorf("expected error for too few samples")
	}
}
