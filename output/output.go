package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/a-pavithraa/aws-helpers/common"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

var Formats = []string{FormatJSON, FormatYAML, FormatText}

// Print renders v in format. A non-empty query is a gjson path applied to
// the JSON form of v before rendering; a path that matches nothing renders
// as null.
func Print(w io.Writer, v any, format string, query string) error {
	if !slices.Contains(Formats, format) {
		return &common.InputError{Message: fmt.Sprintf("unknown output format %q, expected one of %v", format, Formats)}
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	result := gjson.ParseBytes(raw)
	if query != "" {
		result = result.Get(query)
	}
	if !result.Exists() {
		result = gjson.Parse("null")
	}

	switch format {
	case FormatYAML:
		return writeYAML(w, result)
	case FormatText:
		return writeText(w, result)
	default:
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(result.Raw), "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	}
}

// SDK shapes carry unexported fields yaml.v3 refuses, so YAML is produced
// from the generic JSON form.
func writeYAML(w io.Writer, result gjson.Result) error {
	var generic any
	if err := json.Unmarshal([]byte(result.Raw), &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// writeText prints scalars as is and arrays one element per line.
func writeText(w io.Writer, result gjson.Result) error {
	if !result.IsArray() {
		_, err := fmt.Fprintln(w, result.String())
		return err
	}
	var err error
	result.ForEach(func(_, value gjson.Result) bool {
		_, err = fmt.Fprintln(w, value.String())
		return err == nil
	})
	return err
}
