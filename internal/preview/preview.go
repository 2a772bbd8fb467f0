package preview

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
	"github.com/banshee-data/terrain.diffusion/internal/resample"
)

// Options controls rendering.
type Options struct {
	Title string
	// MaxSide caps the rendered width and height in samples; larger fields
	// are decimated. Zero means DefaultMaxSide.
	MaxSide int
}

// DefaultMaxSide keeps HTML previews responsive.
const DefaultMaxSide = 128

// heightColors runs from deep blue through green to white.
var heightColors = []string{"#08306b", "#2171b5", "#6baed6", "#41ab5d", "#a1d99b", "#d9c27a", "#a67c52", "#f7f7f7"}

func (o Options) maxSide() int {
	if o.MaxSide <= 0 {
		return DefaultMaxSide
	}
	return o.MaxSide
}

// prepare decimates g to fit MaxSide and rejects fields too small to plot.
func prepare(g *grid.Grid, o Options) (*grid.Grid, error) {
	if g.Width() < 2 || g.Height() < 2 {
		return nil, fmt.Errorf("preview: height field %dx%d is too small", g.Width(), g.Height())
	}
	side := max(g.Width(), g.Height())
	factor := int(math.Ceil(float64(side) / float64(o.maxSide())))
	if factor <= 1 {
		return g, nil
	}
	return resample.DownSample(g, factor)
}

// heightGrid adapts a height field to plotter.GridXYZ with row 0 drawn at
// the top.
type heightGrid struct{ g *grid.Grid }

func (h heightGrid) Dims() (c, r int)   { return h.g.Width(), h.g.Height() }
func (h heightGrid) Z(c, r int) float64 { return h.g.Pixel(c, h.g.Height()-1-r) }
func (h heightGrid) X(c int) float64    { return float64(c) }
func (h heightGrid) Y(r int) float64    { return float64(r) }

// WritePNG saves a heat map of g to path.
func WritePNG(path string, g *grid.Grid, o Options) error {
	small, err := prepare(g, o)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.HideAxes()

	st := small.Stats()
	hm := plotter.NewHeatMap(heightGrid{small}, palette.Heat(64, 1))
	hm.Min, hm.Max = st.Min, st.Max
	if st.Max <= st.Min {
		hm.Min, hm.Max = st.Min-0.5, st.Max+0.5
	}
	p.Add(hm)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save preview %s: %w", path, err)
	}
	return nil
}

// WriteHTML renders an interactive heat map of g to w.
func WriteHTML(w io.Writer, g *grid.Grid, o Options) error {
	small, err := prepare(g, o)
	if err != nil {
		return err
	}
	width, height := small.Width(), small.Height()

	xs := make([]int, width)
	for x := range xs {
		xs[x] = x
	}
	// Category axes grow upward, so labels run backwards to keep row 0 on top.
	ys := make([]int, height)
	for i := range ys {
		ys[i] = height - 1 - i
	}
	data := make([]opts.HeatMapData, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, height - 1 - y, small.Pixel(x, y)}})
		}
	}

	st := small.Stats()
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    o.Title,
			Subtitle: fmt.Sprintf("%dx%d min=%.3f max=%.3f mean=%.3f", g.Width(), g.Height(), st.Min, st.Max, st.Mean),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xs}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: ys}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(st.Min),
			Max:        float32(st.Max),
			InRange:    &opts.VisualMapInRange{Color: heightColors},
		}),
	)
	hm.SetXAxis(xs).AddSeries("height", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	return nil
}
