package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/cdlinear/parity"
	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

type row struct {
	name      string
	tier      string
	device    float64
	reference float64
	devRMSE   float64
	refRMSE   float64
	hasRef    bool
	err       error
}

func newRow(name, tier string, res *parity.Result, err error) row {
	r := row{name: name, tier: tier, err: err}
	if res != nil {
		r.device = res.DeviceR2
		r.reference = res.ReferenceR2
		r.devRMSE = res.DeviceMetrics.RMSE
		r.refRMSE = res.ReferenceMetrics.RMSE
		r.hasRef = res.HasReference
	}
	return r
}

func (r row) status() string {
	var merr *parity.MarginError
	switch {
	case r.err == nil:
		return "ok"
	case errors.As(r.err, &merr):
		return "FAIL"
	default:
		return "ERROR"
	}
}

// writeTable prints one line per row and returns the number of failed rows.
func writeTable(w io.Writer, rows []row, margin float64) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "scenario\ttier\tdevice R²\treference R²\tdelta\tdevice RMSE\treference RMSE\tstatus")
	failed := 0
	for _, r := range rows {
		status := r.status()
		if status != "ok" {
			failed++
		}
		ref, delta, refRMSE := "skipped", "-", "-"
		if r.hasRef {
			ref = fmt.Sprintf("%.6f", r.reference)
			delta = fmt.Sprintf("%+.6f", r.device-r.reference)
			refRMSE = fmt.Sprintf("%.4g", r.refRMSE)
		}
		if status == "ERROR" {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t%s: %v\n", r.name, r.tier, status, r.err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%.6f\t%s\t%s\t%.4g\t%s\t%s\n",
			r.name, r.tier, r.device, ref, delta, r.devRMSE, refRMSE, status)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d scenarios, %d failed, margin %.2f\n", len(rows), failed, margin)
	return failed
}

// writeChart saves a grouped bar chart of device and reference R² per row. Rows
// that errored are left out; a skipped reference is drawn as zero.
func writeChart(path string, rows []row) error {
	var device, reference plotter.Values
	var labels []string
	for _, r := range rows {
		if r.status() == "ERROR" {
			continue
		}
		device = append(device, r.device)
		reference = append(reference, r.reference)
		labels = append(labels, fmt.Sprint(len(labels)))
	}
	if len(device) == 0 {
		return errors.New("chart: no scored scenarios")
	}

	p := plot.New()
	p.Title.Text = "Held-out R² per scenario"
	p.X.Label.Text = "scenario"
	p.Y.Label.Text = "R²"

	width := vg.Points(6)
	devBars, err := plotter.NewBarChart(device, width)
	if err != nil {
		return errors.Wrap(err, "chart")
	}
	devBars.Color = plotutil.Color(0)
	devBars.Offset = -width / 2

	refBars, err := plotter.NewBarChart(reference, width)
	if err != nil {
		return errors.Wrap(err, "chart")
	}
	refBars.Color = plotutil.Color(1)
	refBars.Offset = width / 2

	p.Add(devBars, refBars)
	p.Legend.Add("device", devBars)
	p.Legend.Add("reference", refBars)
	p.Legend.Top = true
	p.NominalX(labels...)

	chartWidth := vg.Length(len(labels))*2*width + 4*vg.Centimeter
	if chartWidth < 12*vg.Centimeter {
		chartWidth = 12 * vg.Centimeter
	}
	if err := p.Save(chartWidth, 10*vg.Centimeter, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	return nil
}
