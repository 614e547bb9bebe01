package chart

import (
	"math"
	"sort"

	"github.com/golovatskygroup/data-lens/internal/dataset"
)

// histogram bins vals into equal-width bins. bins <= 0 uses Sturges' rule.
// It returns bin centers, counts and the bin width.
func histogram(vals []float64, bins int) ([]float64, []float64, float64) {
	if len(vals) == 0 {
		return nil, nil, 0
	}
	if bins <= 0 {
		bins = int(math.Ceil(math.Log2(float64(len(vals))))) + 1
	}
	lo, hi := minMax(vals)
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(bins)
	counts := make([]float64, bins)
	for _, v := range vals {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	centers := make([]float64, bins)
	for i := range centers {
		centers[i] = lo + width*(float64(i)+0.5)
	}
	return centers, counts, width
}

// kde evaluates a Gaussian kernel density estimate on points grid points
// spanning the data padded by three bandwidths. The bandwidth follows Scott's
// rule.
func kde(vals []float64, points int) ([]float64, []float64) {
	n := len(vals)
	if n < 2 {
		return nil, nil
	}
	sd := dataset.Std(vals)
	if sd == 0 || math.IsNaN(sd) {
		return nil, nil
	}
	bw := sd * math.Pow(float64(n), -0.2)
	lo, hi := minMax(vals)
	lo -= 3 * bw
	hi += 3 * bw

	xs := make([]float64, points)
	ys := make([]float64, points)
	norm := 1 / (float64(n) * bw * math.Sqrt(2*math.Pi))
	for i := 0; i < points; i++ {
		x := lo + (hi-lo)*float64(i)/float64(points-1)
		sum := 0.0
		for _, v := range vals {
			z := (x - v) / bw
			sum += math.Exp(-0.5 * z * z)
		}
		xs[i] = x
		ys[i] = sum * norm
	}
	return xs, ys
}

// boxStats uses Tukey whiskers: the most extreme values within 1.5 IQR of
// the quartiles. Values beyond are outliers.
func boxStats(vals []float64) BoxStats {
	if len(vals) == 0 {
		nan := math.NaN()
		return BoxStats{Low: nan, Q1: nan, Median: nan, Q3: nan, High: nan}
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	st := BoxStats{
		Q1:     dataset.QuantileSorted(sorted, 0.25),
		Median: dataset.QuantileSorted(sorted, 0.5),
		Q3:     dataset.QuantileSorted(sorted, 0.75),
	}
	iqr := st.Q3 - st.Q1
	lowFence, highFence := st.Q1-1.5*iqr, st.Q3+1.5*iqr
	st.Low, st.High = math.Inf(1), math.Inf(-1)
	for _, v := range sorted {
		if v < lowFence || v > highFence {
			st.Outliers = append(st.Outliers, v)
			continue
		}
		st.Low = math.Min(st.Low, v)
		st.High = math.Max(st.High, v)
	}
	return st
}

func minMax(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
