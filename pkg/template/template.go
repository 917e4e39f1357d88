// Package template substitutes {path.to.value} placeholders in node
// configuration strings from the outputs of upstream nodes.
package template

import (
	"encoding/json"
	"fmt"
)

// Render scans the template left to right. A `{` opens a dotted path that runs
// to the next `}`; the path is resolved key by key against values and replaced
// with the stringified result, or the empty string when any segment is missing
// or the bag is not traversable at that point. An unterminated `{` is emitted
// literally. Render never fails: a missing upstream output degrades to "".
func Render(template string, values map[string]any) string {
	var result []byte

	for i := 0; i < len(template); {
		if template[i] != '{' {
			result = append(result, template[i])
			i++

			continue
		}

		j := i + 1
		for j < len(template) && template[j] != '}' {
			j++
		}

		if j >= len(template) {
			// No closing delimiter before end of input.
			result = append(result, template[i])
			i++

			continue
		}

		result = append(result, resolve(template[i+1:j], values)...)
		i = j + 1
	}

	return string(result)
}

// RenderAny renders string templates and coerces everything else to its
// string representation without interpolation.
func RenderAny(template any, values map[string]any) string {
	if str, ok := template.(string); ok {
		return Render(str, values)
	}

	return stringify(template)
}

func resolve(path string, values map[string]any) string {
	var current any = values

	start := 0

	for start <= len(path) {
		end := start
		for end < len(path) && path[end] != '.' {
			end++
		}

		bag, ok := current.(map[string]any)
		if !ok {
			return ""
		}

		current, ok = bag[path[start:end]]
		if !ok {
			return ""
		}

		if end == len(path) {
			break
		}

		start = end + 1
	}

	return stringify(current)
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
