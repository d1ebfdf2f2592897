package commands

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	panSteps   int
	panDelta   string
	panStart   string
	panZoom    float64
	panTimeout time.Duration
	panMetrics bool
)

var panCmd = &cobra.Command{
	Use:   "pan <uri>",
	Short: "Pan a viewport across an image and report tile activity per step",
	Long: `Pan moves the viewport by a fixed delta for a number of steps. After
each step it waits for the tile set to settle and prints one table row with
the decode rectangle, tile counts and decode time.

Examples:
  tileview pan big.jpg --steps 20 --delta 40,0
  tileview pan big.jpg --start 0,0 --delta 25,25 --zoom 0.5 --metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runPan,
}

func init() {
	f := panCmd.Flags()
	f.IntVar(&panSteps, "steps", 10, "number of pan steps")
	f.StringVar(&panDelta, "delta", "32,0", "movement per step in draw-surface pixels, X,Y")
	f.StringVar(&panStart, "start", "", "initial viewport center in image pixels, X,Y (default: image center)")
	f.Float64Var(&panZoom, "zoom", 1, "zoom scale")
	f.DurationVar(&panTimeout, "timeout", 5*time.Minute, "time allowed for the whole run")
	f.BoolVar(&panMetrics, "metrics", false, "print collected metrics after the run")
}

func runPan(cmd *cobra.Command, args []string) error {
	if panZoom <= 0 {
		return fmt.Errorf("zoom must be positive, got %v", panZoom)
	}
	if panSteps < 0 {
		return fmt.Errorf("steps must not be negative, got %d", panSteps)
	}
	surface, err := cfg.SurfaceSize()
	if err != nil {
		return err
	}
	delta, err := parsePoint(panDelta)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), panTimeout)
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	center := s.info.Size.Div(2)
	if panStart != "" {
		if center, err = parsePoint(panStart); err != nil {
			return err
		}
	}
	vp := viewportAt(s.info.Size, surface, center, panZoom)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Step", "Visible", "Decode", "Sample", "Tiles", "Submitted", "Elapsed"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	var lastSubmitted uint64
	for step := 0; step <= panSteps; step++ {
		start := time.Now()
		s.v.Update(vp)
		if err := s.settle(ctx, 1); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		st := s.v.Stats()
		r, _ := s.v.Region()
		table.Append([]string{
			strconv.Itoa(step),
			rectString(r.Visible),
			rectString(r.Decode),
			strconv.Itoa(r.Sample),
			strconv.Itoa(st.Resident),
			strconv.FormatUint(st.Submitted-lastSubmitted, 10),
			time.Since(start).Round(time.Millisecond).String(),
		})
		lastSubmitted = st.Submitted

		vp.Visible = vp.Visible.Add(delta)
	}
	table.Render()

	if panMetrics {
		return printMetrics(cmd, s)
	}
	return nil
}

func rectString(r image.Rectangle) string {
	return fmt.Sprintf("%d,%d %dx%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

func printMetrics(cmd *cobra.Command, s *session) error {
	families, err := s.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Metric", "Labels", "Value"})
	table.SetAutoFormatHeaders(false)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for i, lp := range m.GetLabel() {
				if i > 0 {
					labels += ","
				}
				labels += lp.GetName() + "=" + lp.GetValue()
			}
			var value string
			switch {
			case m.GetCounter() != nil:
				value = strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)
			case m.GetGauge() != nil:
				value = strconv.FormatFloat(m.GetGauge().GetValue(), 'f', -1, 64)
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("n=%d sum=%.3fs", h.GetSampleCount(), h.GetSampleSum())
			default:
				continue
			}
			table.Append([]string{mf.GetName(), labels, value})
		}
	}
	table.Render()
	return nil
}
