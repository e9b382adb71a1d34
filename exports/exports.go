// Package exports moves patches in and out of files.
package exports

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the structured export.
type Document struct {
	Code   string  `json:"code"`
	BPM    float64 `json:"bpm"`
	Volume float64 `json:"volume"`
	Title  string  `json:"title"`
}

func Plain(code string) []byte {
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return []byte(code)
}

func Structured(doc Document) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := json.NewEncoder(buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Imported is the result of reading an export. Fields the input did not
// carry, or carried with the wrong type, are nil and leave settings unchanged.
type Imported struct {
	Code       string
	BPM        *float64
	Volume     *float64
	Title      *string
	Structured bool
}

// Import reads either export form. A JSON or YAML mapping with a string code
// field is structured. Otherwise the whole text is the patch, though numeric
// bpm and volume fields of a mapping still apply.
func Import(data []byte) Imported {
	ret := structured(data)
	if !ret.Structured {
		ret.Code = strings.TrimSpace(string(data))
	}
	return ret
}

func structured(data []byte) (ret Imported) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		switch key.Value {
		case "code":
			if isString(value) {
				ret.Code = value.Value
				ret.Structured = true
			}
		case "bpm":
			ret.BPM = number(value)
		case "volume":
			ret.Volume = number(value)
		case "title":
			if isString(value) {
				title := value.Value
				ret.Title = &title
			}
		}
	}
	return
}

func isString(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str"
}

func number(node *yaml.Node) *float64 {
	if node.Kind != yaml.ScalarNode {
		return nil
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
	default:
		return nil
	}
	var v float64
	if err := node.Decode(&v); err != nil {
		return nil
	}
	return &v
}
