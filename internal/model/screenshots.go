package model

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Screenshots is an ordered list of image URLs.
//
// Stored values arrive as a JSON array, as a string holding a JSON array, or as
// newline-separated text. All of them decode to the same list; anything that
// cannot be parsed decodes to an empty list rather than an error.
type Screenshots []string

// ParseScreenshots normalizes a stored text value.
func ParseScreenshots(raw string) Screenshots {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Screenshots{}
	}

	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return Screenshots{}
		}
		return clean(list)
	}

	return clean(strings.Split(raw, "\n"))
}

func clean(list []string) Screenshots {
	out := make(Screenshots, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// String encodes the list as a JSON array for text columns.
func (s Screenshots) String() string {
	if s == nil {
		s = Screenshots{}
	}
	data, _ := json.Marshal([]string(s))
	return string(data)
}

// MarshalJSON always emits an array, never null.
func (s Screenshots) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON accepts an array or a string and never fails.
func (s *Screenshots) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = clean(list)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = ParseScreenshots(text)
		return nil
	}

	*s = Screenshots{}
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for import files.
func (s *Screenshots) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			*s = Screenshots{}
			return nil
		}
		*s = clean(list)
	case yaml.ScalarNode:
		*s = ParseScreenshots(node.Value)
	default:
		*s = Screenshots{}
	}
	return nil
}
