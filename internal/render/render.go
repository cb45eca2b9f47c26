package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"time"

	"github.com/jpalmerr/envboard/dashboard"
	"github.com/jpalmerr/envboard/internal/sensor"
	"github.com/jpalmerr/envboard/internal/store"
)

const (
	// DefaultTitle is used when no custom title is configured.
	DefaultTitle = "Sensor Dashboard"

	// DefaultRefresh is the client reload period.
	DefaultRefresh = 10 * time.Second

	templatePath = "assets/index.html.tmpl"
)

// tableOrder is the row order of the current-values table.
var tableOrder = []sensor.Metric{
	sensor.TemperatureAHT,
	sensor.TemperatureBME,
	sensor.VOC,
	sensor.Humidity,
	sensor.Pressure,
}

type chartStyle struct {
	metric sensor.Metric
	id     string
	label  string
	color  string
}

// chartOrder is the order and styling of the history charts.
var chartOrder = []chartStyle{
	{sensor.TemperatureAHT, "temperatureAHTChart", "Temp AHT20", "rgba(54, 162, 235, 1)"},
	{sensor.TemperatureBME, "temperatureBMPChart", "Temp BME280", "rgba(75, 192, 192, 1)"},
	{sensor.Humidity, "humidityChart", "Humidity", "rgba(153, 102, 255, 1)"},
	{sensor.Pressure, "pressureChart", "Pressure", "rgba(255, 159, 64, 1)"},
	{sensor.VOC, "tvocChart", "TVOC", "rgba(255, 99, 132, 1)"},
}

// Row is one line of the current-values table.
type Row struct {
	Label string
	Value string
	Unit  string
}

// Chart is one history chart.
type Chart struct {
	ID    string
	Label string
	Color string
	Unit  string
	Data  []float64
}

// View is the data the page template is executed with.
type View struct {
	Title          string
	RefreshSeconds int
	Rows           []Row
	Charts         []Chart
	Labels         []int
}

// Renderer renders dashboard pages from a parsed template.
//
// Renderer is safe for concurrent use.
type Renderer struct {
	tmpl    *template.Template
	title   string
	refresh time.Duration
}

// New parses the embedded page template. An empty title uses [DefaultTitle];
// a refresh below one second uses [DefaultRefresh].
func New(title string, refresh time.Duration) (*Renderer, error) {
	return NewFromFS(dashboard.Assets, title, refresh)
}

// NewFromFS parses the page template from assets.
func NewFromFS(assets fs.FS, title string, refresh time.Duration) (*Renderer, error) {
	tmpl, err := template.ParseFS(assets, templatePath)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	if title == "" {
		title = DefaultTitle
	}
	if refresh < time.Second {
		refresh = DefaultRefresh
	}
	return &Renderer{tmpl: tmpl, title: title, refresh: refresh}, nil
}

// Render returns the complete HTML document for readings and snap.
func (r *Renderer) Render(readings sensor.Readings, snap store.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, r.View(readings, snap)); err != nil {
		return nil, fmt.Errorf("render dashboard: %w", err)
	}
	return buf.Bytes(), nil
}

// View builds the template data for readings and snap.
func (r *Renderer) View(readings sensor.Readings, snap store.Snapshot) View {
	v := View{
		Title:          r.title,
		RefreshSeconds: int(r.refresh / time.Second),
		Rows:           make([]Row, 0, len(tableOrder)),
		Charts:         make([]Chart, 0, len(chartOrder)),
	}

	for _, m := range tableOrder {
		v.Rows = append(v.Rows, Row{
			Label: m.Label(),
			Value: FormatValue(readings.Get(m)),
			Unit:  string(m.Unit()),
		})
	}

	longest := 0
	for _, c := range chartOrder {
		data := snap.Get(c.metric)
		if data == nil {
			data = []float64{}
		}
		if len(data) > longest {
			longest = len(data)
		}
		v.Charts = append(v.Charts, Chart{
			ID:    c.id,
			Label: c.label,
			Color: c.color,
			Unit:  string(c.metric.Unit()),
			Data:  data,
		})
	}

	v.Labels = make([]int, longest)
	for i := range v.Labels {
		v.Labels[i] = i + 1
	}
	return v
}

// FormatValue formats a reading for the table: whole numbers for TVOC, two
// decimals for everything else.
func FormatValue(rd sensor.Reading) string {
	if rd.Metric.Integral() {
		return fmt.Sprintf("%d", int64(rd.Value))
	}
	return fmt.Sprintf("%.2f", rd.Value)
}
