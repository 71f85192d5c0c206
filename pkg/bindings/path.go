package bindings

import (
	"strconv"
	"strings"
)

// ExtractPath evaluates a path expression against nested map/list data.
//
// The path language is deliberately small:
//
//	$          the whole value
//	$.a.b      dotted key access into maps
//	$.a[0]     index access into lists
//
// Any missing key, non-container intermediate, or out-of-range index
// yields nil. The function never panics and never returns an error;
// absence is the only failure mode.
func ExtractPath(data interface{}, path string) interface{} {
	if data == nil {
		return nil
	}
	path = strings.TrimSpace(path)
	if path == "" || path == "$" {
		return data
	}
	if !strings.HasPrefix(path, "$.") {
		return nil
	}

	current := data
	for _, segment := range strings.Split(path[2:], ".") {
		if segment == "" {
			return nil
		}
		key, indexes, ok := splitIndexes(segment)
		if !ok {
			return nil
		}

		if key != "" {
			m, ok := current.(map[string]interface{})
			if !ok {
				return nil
			}
			current, ok = m[key]
			if !ok {
				return nil
			}
		}

		for _, idx := range indexes {
			list, ok := current.([]interface{})
			if !ok {
				return nil
			}
			if idx < 0 || idx >= len(list) {
				return nil
			}
			current = list[idx]
		}
	}

	return current
}

// splitIndexes splits a segment like "arr[0][1]" into its key and index
// parts. A bare "[0]" (no key) indexes the current value directly.
func splitIndexes(segment string) (key string, indexes []int, ok bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		if strings.IndexByte(segment, ']') >= 0 {
			return "", nil, false
		}
		return segment, nil, true
	}

	key = segment[:open]
	rest := segment[open:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			return "", nil, false
		}
		idx, err := strconv.Atoi(rest[1:close])
		if err != nil {
			return "", nil, false
		}
		indexes = append(indexes, idx)
		rest = rest[close+1:]
	}
	return key, indexes, true
}
