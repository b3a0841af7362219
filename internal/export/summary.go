package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/poresim/internal/sim"
)

// SummaryFile is the name of the end-of-run record.
const SummaryFile = "simulation.dat"

var ErrMalformedSummary = errors.New("export: malformed summary")

// WriteSummary writes the adhesion, the no-fluid density and the pressure
// drops, one key per line.
func WriteSummary(w io.Writer, s sim.Summary) error {
	drops := make([]string, len(s.PressureDrops))
	for i, d := range s.PressureDrops {
		drops[i] = formatFloat(d)
	}
	_, err := fmt.Fprintf(w, "f1_ads: %s\ndiss_rho: %s\ndelta_P: %s\n",
		formatFloat(s.Adhesion), formatFloat(s.NoFluid), strings.Join(drops, " "))
	return err
}

func ReadSummary(path string) (sim.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return sim.Summary{}, err
	}
	defer f.Close()
	return ParseSummary(f)
}

// ParseSummary reads a summary written by WriteSummary. Unknown keys are
// ignored.
func ParseSummary(r io.Reader) (sim.Summary, error) {
	var s sim.Summary
	seen := 0
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(value)
		switch key {
		case "f1_ads", "diss_rho":
			if len(fields) != 1 {
				return s, fmt.Errorf("%w: line %d: %s wants one value", ErrMalformedSummary, line, key)
			}
			v, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return s, fmt.Errorf("%w: line %d: %v", ErrMalformedSummary, line, err)
			}
			if key == "f1_ads" {
				s.Adhesion = v
			} else {
				s.NoFluid = v
			}
			seen++
		case "delta_P":
			for _, tok := range fields {
				v, err := strconv.ParseFloat(tok, 64)
				if err != nil {
					return s, fmt.Errorf("%w: line %d: %v", ErrMalformedSummary, line, err)
				}
				s.PressureDrops = append(s.PressureDrops, v)
			}
			seen++
		}
	}
	if err := sc.Err(); err != nil {
		return s, err
	}
	if seen < 3 {
		return s, fmt.Errorf("%w: missing keys", ErrMalformedSummary)
	}
	return s, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
