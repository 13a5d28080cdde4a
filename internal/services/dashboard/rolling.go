package dashboard

import "fmt"

// SeriesCapacity is the number of points kept by every line chart.
const SeriesCapacity = 20

// RollingSeries is a bounded FIFO of labelled points. Several datasets may
// share one label axis (ambient and soil temperature); they are appended and
// evicted together. A RollingSeries is owned by a single goroutine.
type RollingSeries struct {
	capacity int
	names    []string
	labels   []string
	values   [][]float64
}

// NewRollingSeries creates a series holding at most capacity points for each
// of the named datasets.
func NewRollingSeries(capacity int, names ...string) *RollingSeries {
	if capacity <= 0 {
		capacity = SeriesCapacity
	}
	if len(names) == 0 {
		names = []string{""}
	}
	s := &RollingSeries{
		capacity: capacity,
		names:    append([]string(nil), names...),
		labels:   make([]string, 0, capacity+1),
		values:   make([][]float64, len(names)),
	}
	for i := range s.values {
		s.values[i] = make([]float64, 0, capacity+1)
	}
	return s
}

// Append adds one point per dataset under label and evicts the oldest point
// once the capacity is exceeded.
func (s *RollingSeries) Append(label string, values ...float64) {
	if len(values) != len(s.values) {
		panic(fmt.Sprintf("rolling series: got %d values for %d datasets", len(values), len(s.values)))
	}
	s.labels = append(s.labels, label)
	for i, v := range values {
		s.values[i] = append(s.values[i], v)
	}
	if len(s.labels) > s.capacity {
		s.labels = s.labels[1:]
		for i := range s.values {
			s.values[i] = s.values[i][1:]
		}
	}
}

func (s *RollingSeries) Len() int {
	return len(s.labels)
}

// Dataset is one line of a chart.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// ChartSeries is an immutable copy of a RollingSeries, shaped for Chart.js.
type ChartSeries struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Snapshot copies the current contents.
func (s *RollingSeries) Snapshot() ChartSeries {
	out := ChartSeries{
		Labels:   append(make([]string, 0, len(s.labels)), s.labels...),
		Datasets: make([]Dataset, len(s.values)),
	}
	for i, vals := range s.values {
		out.Datasets[i] = Dataset{
			Label: s.names[i],
			Data:  append(make([]float64, 0, len(vals)), vals...),
		}
	}
	return out
}
