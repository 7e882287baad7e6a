package forward

import "time"

// Estimator keeps the running mean of per-iteration throughput. Every sample
// carries equal weight; the first one seeds the mean.
type Estimator struct {
	mean float64
}

// Update folds the sample of iteration i into the mean and returns it.
// Iterations must be fed in order starting at zero.
func (e *Estimator) Update(i int, value float64) float64 {
	if i == 0 {
		e.mean = value
	} else {
		prev := e.mean * (float64(i) / float64(i+1))
		now := value * (1 / float64(i+1))
		e.mean = prev + now
	}
	return e.mean
}

// Mean returns the current mean, zero before the first sample.
func (e *Estimator) Mean() float64 {
	return e.mean
}

// Throughput converts a transfer of n bytes in elapsed to MB/s. Durations
// below one microsecond are counted as one microsecond.
func Throughput(n int, elapsed time.Duration) float64 {
	if elapsed < time.Microsecond {
		elapsed = time.Microsecond
	}
	return float64(n) / BytesPerMB / elapsed.Seconds()
}
