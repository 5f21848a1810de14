package cli

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/DealScope/pkg/errors"
)

// readInput decodes the file at path ("-" for stdin) into dst.  JSON files
// are decoded directly; anything else is read as YAML and re-encoded as JSON
// so dst's JSON tags and custom decoders apply to both formats.
func readInput(cmd *cobra.Command, path string, dst interface{}) error {
	if path == "" {
		return errors.InvalidParam("an input file is required: pass -f <file> or -f - for stdin")
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return errors.InvalidParam("cannot read input file").WithCause(err).WithDetailf("file=%q", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, dst); err != nil {
			return errors.InvalidParam("malformed JSON input").WithCause(err).WithDetailf("file=%q", path)
		}
		return nil
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.InvalidParam("malformed YAML input").WithCause(err).WithDetailf("file=%q", path)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.InvalidParam("input cannot be represented as JSON").WithCause(err).WithDetailf("file=%q", path)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.InvalidParam("input does not match the expected shape").WithCause(err).WithDetailf("file=%q", path)
	}
	return nil
}
