// Package export writes scenarios in the tabular and document formats
// consumed by the phase-screen stage.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/signalsfoundry/scintillation-simulator/core"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Header is the column order of WriteCSV.
var Header = []string{"satellite", "norad_id", "time", "range_km", "range_rate_m_s", "elevation_deg", "azimuth_rad"}

// WriteCSV writes one row per sample of every scenario.
func WriteCSV(w io.Writer, scenarios []core.Scenario) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, sc := range scenarios {
		id := strconv.Itoa(sc.NoradID)
		for _, s := range sc.Samples {
			row := []string{
				sc.Satellite,
				id,
				s.Time.UTC().Format(time.RFC3339),
				formatFloat(s.RangeKm),
				formatFloat(s.RangeRateMps),
				formatFloat(s.ElevationDeg),
				formatFloat(s.AzimuthRad),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteJSON writes the scenarios as an indented JSON array.
func WriteJSON(w io.Writer, scenarios []core.Scenario) error {
	if scenarios == nil {
		scenarios = []core.Scenario{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(scenarios)
}

// Write encodes scenarios in format.
func Write(w io.Writer, format Format, scenarios []core.Scenario) error {
	switch format {
	case FormatCSV, "":
		return WriteCSV(w, scenarios)
	case FormatJSON:
		return WriteJSON(w, scenarios)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile encodes scenarios to path, or to stdout when path is "-" or empty.
func WriteFile(path string, format Format, scenarios []core.Scenario) (err error) {
	if path == "" || path == "-" {
		return Write(os.Stdout, format, scenarios)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, format, scenarios)
}
