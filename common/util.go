package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf(
		"Error in inputs: %s",
		e.Message)
}

func TrimAndCheckEmptyString(s *string) bool {
	*s = strings.TrimSpace(*s)
	return len(*s) == 0
}

// RequireNonEmpty returns an InputError naming every field whose value is blank.
func RequireNonEmpty(fields map[string]string) error {
	var errorMessage strings.Builder
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		value := fields[name]
		if TrimAndCheckEmptyString(&value) {
			errorMessage.WriteString(name + " cannot be empty.\n")
		}
	}
	if errorMessage.Len() > 0 {
		return &InputError{Message: errorMessage.String()}
	}
	return nil
}

// DecodeJSON unmarshals a single JSON document, keeping numbers as
// json.Number so integers wider than a float64 keep every digit.
func DecodeJSON(raw []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// ParseJSONObject decodes a JSON object given on the command line. An empty
// string yields a nil map.
func ParseJSONObject(raw string) (map[string]any, error) {
	if TrimAndCheckEmptyString(&raw) {
		return nil, nil
	}
	result := make(map[string]any)
	if err := DecodeJSON([]byte(raw), &result); err != nil {
		return nil, &InputError{Message: fmt.Sprintf("not a JSON object: %v", err)}
	}
	return result, nil
}

// ParseJSONValue reads a command line value as JSON so that 27 is a number
// and true a bool. Anything that is not valid JSON is kept as a string.
func ParseJSONValue(raw string) any {
	var value any
	if err := DecodeJSON([]byte(raw), &value); err != nil {
		return raw
	}
	return value
}
