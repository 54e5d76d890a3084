package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"golang.org/x/term"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// format resolves the output format, defaulting to a table when stdout is a
// terminal.
func (e *env) format() (string, error) {
	switch e.output {
	case formatTable, formatJSON, formatYAML:
		return e.output, nil
	case "":
		if f, ok := e.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return formatTable, nil
		}
		return formatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", e.output)
}

// render writes v in the selected format. table is called for the table
// format with a tabwriter that is flushed afterwards.
func (e *env) render(v any, table func(w io.Writer)) error {
	f, err := e.format()
	if err != nil {
		return err
	}
	switch f {
	case formatJSON:
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		b, err := yaml.MarshalWithOptions(v, yaml.UseJSONMarshaler())
		if err != nil {
			return err
		}
		_, err = e.out.Write(b)
		return err
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}
