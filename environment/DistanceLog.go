package environment

// DistanceLog records the distance to the goal on every step of every
// episode. The current episode is kept separately from finished
// episodes; EndEpisode moves it into the history.
type DistanceLog struct {
	current  []float64
	episodes [][]float64
}

// NewDistanceLog returns an empty DistanceLog
func NewDistanceLog() *DistanceLog {
	return &DistanceLog{}
}

// Record appends a distance to the current episode
func (d *DistanceLog) Record(dist float64) {
	d.current = append(d.current, dist)
}

// EndEpisode closes the current episode. Empty episodes are dropped.
func (d *DistanceLog) EndEpisode() {
	if len(d.current) == 0 {
		return
	}
	d.episodes = append(d.episodes, d.current)
	d.current = nil
}

// Current returns a copy of the distances recorded so far in the current
// episode
func (d *DistanceLog) Current() []float64 {
	out := make([]float64, len(d.current))
	copy(out, d.current)
	return out
}

// Episodes returns a copy of the distances of every finished episode
func (d *DistanceLog) Episodes() [][]float64 {
	out := make([][]float64, len(d.episodes))
	for i := range d.episodes {
		out[i] = make([]float64, len(d.episodes[i]))
		copy(out[i], d.episodes[i])
	}
	return out
}

// Final returns the last recorded distance of every finished episode
func (d *DistanceLog) Final() []float64 {
	out := make([]float64, len(d.episodes))
	for i, ep := range d.episodes {
		out[i] = ep[len(ep)-1]
	}
	return out
}

// Clear drops all recorded distances
func (d *DistanceLog) Clear() {
	d.current = nil
	d.episodes = nil
}
