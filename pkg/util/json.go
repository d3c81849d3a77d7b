package util

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PrintPrettyJSON prints v with indentation. Raw JSON is re-indented as is,
// keeping the field order the node sent.
func PrintPrettyJSON(v any) error {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		fmt.Println("{}")
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	fmt.Println(buf.String())
	return nil
}
