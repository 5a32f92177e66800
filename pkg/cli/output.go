package cli

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to write output")
	}
	return nil
}

// parseIntervals reads seconds values given as repeated flags or comma lists
func parseIntervals(values []string) ([]float64, error) {
	var out []float64
	for _, v := range values {
		for _, field := range strings.Split(v, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			f, err := strconv.ParseFloat(field, 64)
			if err != nil || f <= 0 {
				return nil, goerr.New("candidate interval must be a positive number of seconds", goerr.V("value", field))
			}
			out = append(out, f)
		}
	}
	return out, nil
}
