// Package charts renders corpus and training reports as interactive HTML
// charts.
package charts

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title      string   // Chart title
	Subtitle   string   // Chart subtitle
	SeriesName string   // Series name for single-series charts
	Width      string   // Chart width (e.g., "900px")
	Height     string   // Chart height (e.g., "500px")
	Theme      string   // Chart theme
	ShowLegend bool     // Show legend
	Smooth     bool     // Smooth line (for line charts)
	Colors     []string // Custom colors
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "900px",
		Height:     "500px",
		Theme:      "light",
		ShowLegend: true,
		Smooth:     true,
		Colors:     []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE", "#3BA272", "#FC8452", "#9A60B4", "#EA7CCC"},
	}
}

// DataPoint represents a single data point in a chart.
type DataPoint struct {
	Label string
	Value float64
}

// SeriesData represents a data series for multi-series charts.
type SeriesData struct {
	Name   string
	Points []DataPoint
}

type renderer interface {
	Render(w io.Writer) error
}

func globalOpts(config ChartConfig) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(config.ShowLegend),
		}),
	}
}

func labels(data []DataPoint) []string {
	xLabels := make([]string, len(data))
	for i, point := range data {
		xLabels[i] = point.Label
	}
	return xLabels
}

func seriesName(config ChartConfig) string {
	if config.SeriesName != "" {
		return config.SeriesName
	}
	return config.Title
}

// RenderLineChart creates an interactive line chart HTML file.
func RenderLineChart(data []DataPoint, config ChartConfig, outputPath string) error {
	if len(data) == 0 {
		return fmt.Errorf("no data points provided")
	}
	line := charts.NewLine()
	line.SetGlobalOptions(append(globalOpts(config),
		charts.WithColorsOpts(opts.Colors{config.Colors[0]}))...)

	yData := make([]opts.LineData, len(data))
	for i, point := range data {
		yData[i] = opts.LineData{Value: point.Value}
	}

	line.SetXAxis(labels(data)).
		AddSeries(seriesName(config), yData).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{
				Smooth: opts.Bool(config.Smooth),
			}),
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	return renderFile(line, outputPath)
}

// RenderBarChart creates an interactive bar chart HTML file.
func RenderBarChart(data []DataPoint, config ChartConfig, outputPath string) error {
	if len(data) == 0 {
		return fmt.Errorf("no data points provided")
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(globalOpts(config),
		charts.WithColorsOpts(opts.Colors{config.Colors[0]}))...)

	yData := make([]opts.BarData, len(data))
	for i, point := range data {
		yData[i] = opts.BarData{Value: point.Value}
	}

	bar.SetXAxis(labels(data)).
		AddSeries(seriesName(config), yData).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	return renderFile(bar, outputPath)
}

// RenderMultiLineChart creates a multi-series line chart HTML file. The
// first series supplies the x-axis labels.
func RenderMultiLineChart(series []SeriesData, config ChartConfig, outputPath string) error {
	if len(series) == 0 {
		return fmt.Errorf("no data series provided")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(globalOpts(config)...)
	line.SetXAxis(labels(series[0].Points))

	for i, s := range series {
		yData := make([]opts.LineData, len(s.Points))
		for j, point := range s.Points {
			yData[j] = opts.LineData{Value: point.Value}
		}

		color := config.Colors[i%len(config.Colors)]
		line.AddSeries(s.Name, yData).
			SetSeriesOptions(
				charts.WithLineChartOpts(opts.LineChart{
					Smooth: opts.Bool(config.Smooth),
				}),
				charts.WithLabelOpts(opts.Label{
					Show: opts.Bool(false),
				}),
				charts.WithItemStyleOpts(opts.ItemStyle{
					Color: color,
				}),
			)
	}

	return renderFile(line, outputPath)
}

func renderFile(chart renderer, outputPath string) error {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create chart directory: %w", err)
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := chart.Render(f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
