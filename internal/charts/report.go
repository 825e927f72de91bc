package charts

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/scoring"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

// Report file names written by WriteCorpusReport.
const (
	FrequencyRankFile      = "frequency_rank.html"
	FrequencyHistogramFile = "frequency_histogram.html"
	StreamSizesFile        = "stream_sizes.html"
)

// FrequencyRank returns the top most frequent cards, most frequent first.
// Cards are labelled by oracle id when the index has one.
func FrequencyRank(v *vocab.Index, top int) []DataPoint {
	freq := v.Frequencies()
	order := make([]int, len(freq))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return freq[order[a]] > freq[order[b]]
	})
	if top > 0 && top < len(order) {
		order = order[:top]
	}

	points := make([]DataPoint, len(order))
	for i, c := range order {
		label, ok := v.Oracle(c)
		if !ok {
			label = strconv.Itoa(c)
		}
		points[i] = DataPoint{Label: label, Value: float64(freq[c])}
	}
	return points
}

// FrequencyHistogram buckets card frequencies into equal-width bins.
func FrequencyHistogram(freq []int, buckets int) []DataPoint {
	if len(freq) == 0 || buckets < 1 {
		return nil
	}
	x := make([]float64, len(freq))
	for i, f := range freq {
		x[i] = float64(f)
	}
	sort.Float64s(x)

	dividers := make([]float64, buckets+1)
	floats.Span(dividers, x[0], x[len(x)-1]+1)
	counts := stat.Histogram(nil, dividers, x, nil)

	points := make([]DataPoint, len(counts))
	for i, n := range counts {
		points[i] = DataPoint{
			Label: fmt.Sprintf("%.0f-%.0f", dividers[i], dividers[i+1]),
			Value: n,
		}
	}
	return points
}

// StreamSizes returns the record count of each stream.
func StreamSizes(meta corpus.Metadata) []DataPoint {
	points := make([]DataPoint, len(corpus.Streams))
	for i, s := range corpus.Streams {
		points[i] = DataPoint{Label: s.String(), Value: float64(meta.Count(s))}
	}
	return points
}

// EpochScores turns per-epoch baseline reports into one series per score.
func EpochScores(reports []scoring.BaselineReport) []SeriesData {
	cube := SeriesData{Name: "cube top-rated percent"}
	pick := SeriesData{Name: "pick probability"}
	for _, r := range reports {
		label := strconv.Itoa(r.Epoch)
		cube.Points = append(cube.Points, DataPoint{Label: label, Value: r.CubeTopRate})
		pick.Points = append(pick.Points, DataPoint{Label: label, Value: r.PickProb})
	}
	return []SeriesData{cube, pick}
}

// WriteCorpusReport renders the corpus charts into dir and returns the files
// written.
func WriteCorpusReport(dir string, v *vocab.Index, meta corpus.Metadata, top int) ([]string, error) {
	rank := DefaultChartConfig()
	rank.Title = "Card frequency"
	rank.Subtitle = fmt.Sprintf("top %d of %d cards", min(top, v.NumCards()), v.NumCards())
	rank.SeriesName = "cubes containing card"

	hist := DefaultChartConfig()
	hist.Title = "Card frequency distribution"
	hist.SeriesName = "cards"

	sizes := DefaultChartConfig()
	sizes.Title = "Stream sizes"
	sizes.SeriesName = "records"

	files := []struct {
		name   string
		render func(path string) error
	}{
		{FrequencyRankFile, func(path string) error {
			return RenderBarChart(FrequencyRank(v, top), rank, path)
		}},
		{FrequencyHistogramFile, func(path string) error {
			return RenderBarChart(FrequencyHistogram(v.Frequencies(), 20), hist, path)
		}},
		{StreamSizesFile, func(path string) error {
			return RenderBarChart(StreamSizes(meta), sizes, path)
		}},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := f.render(path); err != nil {
			return written, fmt.Errorf("%s: %w", f.name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
