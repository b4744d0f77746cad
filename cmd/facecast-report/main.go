// Command facecast-report renders an offline session report from the event
// log: an interactive HTML chart of the pointer path with click markers,
// a PNG trace, and a console summary.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/facecast-labs/facecast/internal/eventlog"
)

var (
	dbPath    = flag.String("db", "facecast.db", "Event log database path")
	sessionID = flag.String("session", "", "Session to report on (default: most recent)")
	outDir    = flag.String("out", "reports", "Output directory for rendered files")
	format    = flag.String("format", "both", "Output format: html, png, or both")
	maxPoints = flag.Int("max-points", 20000, "Maximum pointer observations to load")
)

func main() {
	flag.Parse()

	if *format != "html" && *format != "png" && *format != "both" {
		log.Fatalf("invalid -format %q (want html, png, or both)", *format)
	}

	db, err := eventlog.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open event log: %v", err)
	}
	defer db.Close()

	session := *sessionID
	if session == "" {
		session, err = db.LatestSessionID()
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Fatal("event log has no sessions")
			}
			log.Fatalf("failed to find latest session: %v", err)
		}
	}

	trace, err := db.SessionTrace(session, *maxPoints)
	if err != nil {
		log.Fatalf("failed to load pointer trace: %v", err)
	}
	clicks, err := db.SessionClicks(session)
	if err != nil {
		log.Fatalf("failed to load clicks: %v", err)
	}
	summary, err := db.Summary(session)
	if err != nil {
		log.Fatalf("failed to summarise session: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	if *format == "html" || *format == "both" {
		out := filepath.Join(*outDir, fmt.Sprintf("%s.html", session))
		if err := renderHTML(out, session, trace, clicks); err != nil {
			log.Fatalf("failed to render HTML report: %v", err)
		}
		log.Printf("wrote %s", out)
	}
	if *format == "png" || *format == "both" {
		out := filepath.Join(*outDir, fmt.Sprintf("%s.png", session))
		if err := renderPNG(out, trace, clicks); err != nil {
			log.Fatalf("failed to render PNG report: %v", err)
		}
		log.Printf("wrote %s", out)
	}

	printSummary(summary)
}

func printSummary(s eventlog.SessionSummary) {
	fmt.Printf("session   %s\n", s.ID)
	fmt.Printf("started   %s\n", s.StartedAt.Format(time.RFC3339))
	fmt.Printf("duration  %s\n", s.Duration.Round(time.Millisecond))
	fmt.Printf("moves     %d\n", s.Moves)
	fmt.Printf("clicks    %d\n", s.Clicks)
	if s.Clicks > 0 {
		fmt.Printf("ratio     mean %.3f, max %.3f\n", s.MeanRatio, s.MaxRatio)
	}
}

// renderHTML writes an interactive ECharts scatter of the pointer path with
// click markers. Y is flipped to match screen orientation.
func renderHTML(path, session string, trace []eventlog.PointerObs, clicks []eventlog.ClickEvent) error {
	moveData := make([]opts.ScatterData, 0, len(trace))
	for _, o := range trace {
		moveData = append(moveData, opts.ScatterData{Value: []interface{}{o.X, 1 - o.Y}, SymbolSize: 4})
	}
	clickData := make([]opts.ScatterData, 0, len(clicks))
	for _, c := range clicks {
		clickData = append(clickData, opts.ScatterData{Value: []interface{}{c.X, 1 - c.Y}, SymbolSize: 14})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "facecast session report", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Pointer Trace",
			Subtitle: fmt.Sprintf("session=%s moves=%d clicks=%d", session, len(trace), len(clicks)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 1, Name: "X"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "Y (flipped)"}),
	)
	scatter.AddSeries("pointer", moveData)
	scatter.AddSeries("clicks", clickData)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	return scatter.Render(f)
}

// renderPNG writes a static pointer-path plot with click markers.
func renderPNG(path string, trace []eventlog.PointerObs, clicks []eventlog.ClickEvent) error {
	p := plot.New()
	p.Title.Text = "Pointer Trace"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y (flipped)"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, 0, len(trace))
	for _, o := range trace {
		pts = append(pts, plotter.XY{X: o.X, Y: 1 - o.Y})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build trace line: %w", err)
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 70, G: 130, B: 200, A: 255}
	p.Add(line)
	p.Legend.Add("pointer", line)

	if len(clicks) > 0 {
		clickPts := make(plotter.XYs, 0, len(clicks))
		for _, c := range clicks {
			clickPts = append(clickPts, plotter.XY{X: c.X, Y: 1 - c.Y})
		}
		scatter, err := plotter.NewScatter(clickPts)
		if err != nil {
			return fmt.Errorf("build click markers: %w", err)
		}
		scatter.GlyphStyle.Radius = vg.Points(4)
		scatter.GlyphStyle.Color = color.RGBA{R: 220, G: 60, B: 60, A: 255}
		p.Add(scatter)
		p.Legend.Add("clicks", scatter)
	}

	return p.Save(9*vg.Inch, 9*vg.Inch, path)
}
