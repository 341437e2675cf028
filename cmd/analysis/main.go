package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"gpv-trapdoor/keys"
	"gpv-trapdoor/parallel"
	"gpv-trapdoor/params"
	"gpv-trapdoor/poly"
	"gpv-trapdoor/prof"
	"gpv-trapdoor/sampling"
	"gpv-trapdoor/trapdoor"
)

type summaryStats struct {
	Count    int       `json:"count"`
	Mean     float64   `json:"mean"`
	Std      float64   `json:"std"`
	Min      float64   `json:"min"`
	Q1       float64   `json:"q1"`
	Median   float64   `json:"median"`
	Q3       float64   `json:"q3"`
	Max      float64   `json:"max"`
	IQR      float64   `json:"iqr"`
	Expected float64   `json:"expected_std,omitempty"`
	CDFGap   float64   `json:"cdf_gap,omitempty"`
	Hist     histogram `json:"histogram"`
}

type report struct {
	Params   params.ParametersLiteral `json:"params"`
	Samples  int                      `json:"samples"`
	Split    bool                     `json:"split"`
	S        float64                  `json:"s"`
	BoundInf float64                  `json:"bound_inf"`
	BoundL2  float64                  `json:"bound_l2"`
	Columns  []summaryStats           `json:"columns"`
	All      summaryStats             `json:"all"`
	L2       summaryStats             `json:"l2"`
	Failures int                      `json:"tail_failures"`
}

// describe summarizes x and bins it. When expected is positive the
// histogram is also compared against a centered normal of that deviation.
func describe(x stats.Float64Data, expected float64) summaryStats {
	if len(x) == 0 {
		return summaryStats{}
	}
	out := summaryStats{Count: len(x), Expected: expected}
	out.Mean, _ = x.Mean()
	out.Std, _ = x.StandardDeviationSample()
	out.Min, _ = x.Min()
	out.Max, _ = x.Max()
	if q, err := x.Quartiles(); err == nil {
		out.Q1, out.Median, out.Q3 = q.Q1, q.Q2, q.Q3
	} else {
		out.Median, _ = x.Median()
	}
	out.IQR = out.Q3 - out.Q1
	out.Hist = binValues(x, out)
	if expected > 0 {
		out.CDFGap = out.Hist.cdfGap(distuv.Normal{Mu: 0, Sigma: expected})
	}
	return out
}

// histogram holds nbins+1 edges and nbins counts over [Min, Max].
type histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []int     `json:"counts"`
}

// binValues bins x with a Freedman-Diaconis width, keeping between 20 and
// 400 bins.
func binValues(x stats.Float64Data, st summaryStats) histogram {
	nbins := 20
	if n := len(x); n >= 2 && st.IQR > 0 {
		bw := 2 * st.IQR * math.Pow(float64(n), -1.0/3.0)
		nbins = min(max(int(math.Ceil((st.Max-st.Min)/bw)), 20), 400)
	}
	width := (st.Max - st.Min) / float64(nbins)
	if width <= 0 {
		width = 1
	}
	h := histogram{Edges: make([]float64, nbins+1), Counts: make([]int, nbins)}
	for i := range h.Edges {
		h.Edges[i] = st.Min + float64(i)*width
	}
	for _, v := range x {
		i := min(max(int(math.Floor((v-st.Min)/width)), 0), nbins-1)
		h.Counts[i]++
	}
	return h
}

// cdfGap is the largest distance between the empirical CDF at the upper bin
// edges and the CDF of ref.
func (h histogram) cdfGap(ref distuv.Normal) float64 {
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	gap, cum := 0.0, 0
	for i, c := range h.Counts {
		cum += c
		gap = math.Max(gap, math.Abs(float64(cum)/float64(total)-ref.CDF(h.Edges[i+1])))
	}
	return gap
}

func (h histogram) chart(title string, st summaryStats) *charts.Bar {
	xLabels := make([]string, len(h.Counts))
	items := make([]opts.BarData, len(h.Counts))
	for i, c := range h.Counts {
		xLabels[i] = fmt.Sprintf("%.1f", 0.5*(h.Edges[i]+h.Edges[i+1]))
		items[i] = opts.BarData{Value: c}
	}
	subtitle := fmt.Sprintf("n=%d, mean=%.3f, std=%.3f, median=%.1f, IQR=%.1f", st.Count, st.Mean, st.Std, st.Median, st.IQR)
	if st.Expected > 0 {
		subtitle += fmt.Sprintf(", expected std=%.3f, cdf gap=%.4f", st.Expected, st.CDFGap)
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(xLabels).
		AddSeries("count", items).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return bar
}

func main() {
	name := flag.String("p", "N256Q30", "preset name or parameter file")
	samples := flag.Int("samples", 64, "number of preimages to sample")
	split := flag.Bool("split", false, "sample through separate offline/online phases")
	threads := flag.Int("threads", 0, "worker threads (0 = hardware threads)")
	outDir := flag.String("out", "Measure_Reports", "output directory for reports")
	flag.Parse()

	if *threads > 0 {
		parallel.SetThreads(*threads)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	p, err := params.Resolve(*name)
	if err != nil {
		log.Fatalf("params: %v", err)
	}
	src, err := sampling.NewSource()
	if err != nil {
		log.Fatalf("source: %v", err)
	}

	start := time.Now()
	pair, err := trapdoor.Generate(p, src)
	if err != nil {
		log.Fatalf("generate: %v", err)
	}
	prof.Track(start, "generate")

	sampler := trapdoor.NewGaussianSampler(p)
	uniform := sampling.NewUniformGenerator(p.RingQ())
	cols := make([]stats.Float64Data, p.M())
	var all, l2s stats.Float64Data
	failures := 0
	for i := 0; i < *samples; i++ {
		u := uniform.ReadNew(src).SwitchFormat(poly.Evaluation)
		var x *poly.Matrix
		if *split {
			t0 := time.Now()
			var pert *trapdoor.Perturbation
			pert, err = sampler.SampleOffline(pair.T, src)
			if err != nil {
				log.Fatalf("offline: %v", err)
			}
			prof.Track(t0, "offline")
			t1 := time.Now()
			x, err = sampler.SampleOnline(pair.A, pair.T, u, pert, src)
			prof.Track(t1, "online")
		} else {
			t0 := time.Now()
			x, err = sampler.Sample(pair.A, pair.T, u, src)
			prof.Track(t0, "sample")
		}
		if err != nil {
			log.Printf("warn: sample %d: %v", i, err)
			failures++
			continue
		}
		for c := 0; c < p.M(); c++ {
			for _, v := range x.At(c, 0).AsFormat(poly.Coefficient).Centered() {
				cols[c] = append(cols[c], float64(v))
				all = append(all, float64(v))
			}
		}
		_, l2 := poly.Norms(x.Elements())
		l2s = append(l2s, l2)
		if (i+1)%16 == 0 {
			log.Printf("[analysis] %d/%d preimages", i+1, *samples)
		}
	}

	rep := report{
		Params:   p.Literal(),
		Samples:  *samples,
		Split:    *split,
		S:        p.S(),
		BoundInf: p.BoundInf(),
		BoundL2:  p.BoundL2(),
		All:      describe(all, p.S()),
		L2:       describe(l2s, 0),
		Failures: failures,
	}
	page := components.NewPage()
	page.AddCharts(rep.All.Hist.chart("all preimage coefficients", rep.All))
	for c := range cols {
		st := describe(cols[c], p.S())
		rep.Columns = append(rep.Columns, st)
		page.AddCharts(st.Hist.chart(fmt.Sprintf("column %d", c), st))
		fmt.Printf("column %2d: mean=%7.3f std=%8.3f (s=%.3f, ratio %.3f) max=%6.0f cdf gap=%.4f\n",
			c, st.Mean, st.Std, p.S(), st.Std/p.S(), math.Max(-st.Min, st.Max), st.CDFGap)
	}
	page.AddCharts(rep.L2.Hist.chart("l2 norm", rep.L2))

	ts := time.Now().Format("20060102_150405")
	jsonPath := filepath.Join(*outDir, fmt.Sprintf("preimage_stats_%s.json", ts))
	if err := keys.Save(jsonPath, rep); err != nil {
		log.Printf("warn: save stats: %v", err)
	}
	htmlPath := filepath.Join(*outDir, fmt.Sprintf("preimage_histograms_%s.html", ts))
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("create html: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render html: %v", err)
	}
	if err := prof.Report(os.Stdout, true); err != nil {
		log.Printf("warn: timings: %v", err)
	}
	fmt.Println("Histogram page:", htmlPath)
	fmt.Println("Stats JSON:", jsonPath)
}
