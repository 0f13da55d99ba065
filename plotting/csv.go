package plotting

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/wheelbot/safempc/simulation"
)

// WriteCSV streams the per-cycle closed-loop log: time, estimated state,
// applied input, resulting state, and solve wall time.
func WriteCSV(hist *simulation.History, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"cycle", "t", "x", "y", "theta", "v", "omega", "next_x", "next_y", "next_theta", "solve_ms"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range hist.Records() {
		row := []string{
			strconv.Itoa(rec.Cycle),
			formatFloat(rec.Time),
			formatFloat(rec.Estimated.X),
			formatFloat(rec.Estimated.Y),
			formatFloat(rec.Estimated.Theta),
			formatFloat(rec.Applied.V),
			formatFloat(rec.Applied.Omega),
			formatFloat(rec.Next.X),
			formatFloat(rec.Next.Y),
			formatFloat(rec.Next.Theta),
			formatFloat(float64(rec.SolveTime.Microseconds()) / 1e3),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
