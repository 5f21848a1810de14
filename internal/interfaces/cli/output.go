package cli

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/DealScope/pkg/client"
	"github.com/turtacn/DealScope/pkg/errors"
)

// tableProvider is implemented by results that render as one table.
type tableProvider interface {
	TableHeaders() []string
	TableRows() [][]string
}

// summaryProvider adds key/value lines printed above the table.
type summaryProvider interface {
	Summary() [][2]string
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "json"
	color := false
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
		color = !cliCtx.NoColor && isTerminal(cmd.OutOrStdout())
	}

	switch format {
	case "json":
		return printJSON(cmd.OutOrStdout(), data)
	case "yaml":
		return printYAML(cmd.OutOrStdout(), data)
	case "table":
		return printTable(cmd.OutOrStdout(), data, color)
	default:
		return printText(cmd.OutOrStdout(), data)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printYAML renders data through its JSON encoding so field names and
// custom marshalers match the API, keeping key order.
func printYAML(w io.Writer, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return err
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle | yaml.DoubleQuotedStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func printText(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(w, v)
	case fmt.Stringer:
		fmt.Fprintln(w, v.String())
	case tableProvider:
		return printTable(w, data, false)
	default:
		return printJSON(w, data)
	}
	return nil
}

func printTable(w io.Writer, data interface{}, color bool) error {
	tp, ok := data.(tableProvider)
	if !ok {
		return printText(w, data)
	}
	if sp, ok := data.(summaryProvider); ok {
		lines := sp.Summary()
		width := 0
		for _, kv := range lines {
			if len(kv[0]) > width {
				width = len(kv[0])
			}
		}
		for _, kv := range lines {
			fmt.Fprintf(w, "%s  %s\n", padRight(kv[0]+":", width+1), kv[1])
		}
		if len(lines) > 0 {
			fmt.Fprintln(w)
		}
	}
	out := FormatTable(tp.TableHeaders(), tp.TableRows())
	if color && out != "" {
		if i := strings.IndexByte(out, '\n'); i > 0 {
			out = "\x1b[1m" + out[:i] + "\x1b[0m" + out[i:]
		}
	}
	fmt.Fprint(w, out)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	var apiErr *client.APIError
	ae, isApp := errors.AsAppError(err)
	switch {
	case stderrors.As(err, &apiErr):
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: [%s] %s\n", apiErr.Code, apiErr.Message)
		if apiErr.Detail != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "  detail: %s\n", apiErr.Detail)
		}
	case isApp && ae.Code != errors.CodeUnknown:
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: [%s] %s\n", ae.Code, ae.Message)
		if ae.Detail != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "  detail: %s\n", ae.Detail)
		}
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
	}
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb bytes.Buffer
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, colWidths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	seps := make([]string, len(headers))
	for i, w := range colWidths {
		seps[i] = strings.Repeat("-", w)
	}
	writeRow(seps)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
