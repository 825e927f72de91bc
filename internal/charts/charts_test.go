package charts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/cubeml/internal/corpus"
	"github.com/ramonehamilton/cubeml/internal/scoring"
	"github.com/ramonehamilton/cubeml/internal/vocab"
)

func TestFrequencyRank(t *testing.T) {
	v, err := vocab.New([]int{3, 9, 1, 9})
	require.NoError(t, err)

	points := FrequencyRank(v, 3)
	require.Len(t, points, 3)
	assert.Equal(t, []DataPoint{
		{Label: "1", Value: 9},
		{Label: "3", Value: 9},
		{Label: "0", Value: 3},
	}, points)

	require.NoError(t, v.SetOracles([]string{"a", "b", "c", "d"}))
	points = FrequencyRank(v, 0)
	require.Len(t, points, 4)
	assert.Equal(t, "b", points[0].Label)
	assert.Equal(t, "c", points[3].Label)
}

func TestFrequencyHistogram(t *testing.T) {
	points := FrequencyHistogram([]int{5, 0, 1, 1}, 2)
	assert.Equal(t, []DataPoint{
		{Label: "0-3", Value: 3},
		{Label: "3-6", Value: 1},
	}, points)

	assert.Nil(t, FrequencyHistogram(nil, 2))
	assert.Nil(t, FrequencyHistogram([]int{1}, 0))
}

func TestStreamSizes(t *testing.T) {
	points := StreamSizes(corpus.Metadata{NumOracles: 4, NumCubes: 10, NumDecks: 3, NumPicks: 7})
	require.Len(t, points, len(corpus.Streams))
	for i, s := range corpus.Streams {
		assert.Equal(t, s.String(), points[i].Label)
	}
	assert.Equal(t, []float64{10, 3, 7, 4}, []float64{points[0].Value, points[1].Value, points[2].Value, points[3].Value})
}

func TestEpochScores(t *testing.T) {
	series := EpochScores([]scoring.BaselineReport{
		{Epoch: 0, CubeTopRate: 0.5, PickProb: 0.25},
		{Epoch: 1, CubeTopRate: 0.6, PickProb: 0.3},
	})
	require.Len(t, series, 2)
	assert.Equal(t, []DataPoint{{Label: "0", Value: 0.5}, {Label: "1", Value: 0.6}}, series[0].Points)
	assert.Equal(t, []DataPoint{{Label: "0", Value: 0.25}, {Label: "1", Value: 0.3}}, series[1].Points)
}

func TestWriteCorpusReport(t *testing.T) {
	v, err := vocab.New([]int{3, 9, 1, 9, 0})
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "report")

	files, err := WriteCorpusReport(dir, v, corpus.Metadata{NumOracles: 5, NumCubes: 2, NumDecks: 1, NumPicks: 1}, 3)
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, f := range files {
		body, err := os.ReadFile(f)
		require.NoError(t, err)
		assert.Contains(t, string(body), "echarts")
	}
}

func TestRender_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultChartConfig()

	assert.Error(t, RenderLineChart(nil, cfg, filepath.Join(dir, "a.html")))
	assert.Error(t, RenderBarChart(nil, cfg, filepath.Join(dir, "b.html")))
	assert.Error(t, RenderMultiLineChart(nil, cfg, filepath.Join(dir, "c.html")))
}

func TestRenderMultiLineChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epochs.html")
	cfg := DefaultChartConfig()
	cfg.Title = "Baseline scores"

	series := EpochScores([]scoring.BaselineReport{{Epoch: 0, CubeTopRate: 0.5, PickProb: 0.25}})
	require.NoError(t, RenderMultiLineChart(series, cfg, path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Baseline scores")
}
