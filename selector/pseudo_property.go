package selector

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"extcss/dom"
)

// pathSegment is either literal key or regular expression over keys.
type pathSegment struct {
	key  string
	test func(string) bool
}

func parsePropertyPath(path string) ([]pathSegment, error) {
	var segments []pathSegment
	for start := 0; ; {
		i := indexOutside(path, '.', start)
		part := path
		if i >= 0 {
			part = path[start:i]
		} else {
			part = path[start:]
		}
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment in property path %q", ErrInvalidArgument, path)
		}
		re, ok, err := parseRegexp(part)
		if err != nil {
			return nil, err
		}
		if ok {
			segments = append(segments, pathSegment{test: re.MatchString})
		} else {
			segments = append(segments, pathSegment{key: part})
		}
		if i < 0 {
			return segments, nil
		}
		start = i + 1
	}
}

// resolvePath walks property tree, regular expression segments fan out over
// all matching keys.
func resolvePath(props map[string]any, segments []pathSegment) []any {
	level := []map[string]any{props}
	for i, seg := range segments {
		var values []any
		for _, obj := range level {
			if seg.test == nil {
				if v, ok := obj[seg.key]; ok {
					values = append(values, v)
				}
				continue
			}
			for k, v := range obj {
				if seg.test(k) {
					values = append(values, v)
				}
			}
		}
		if i == len(segments)-1 {
			return values
		}
		level = level[:0:0]
		for _, v := range values {
			if obj, ok := v.(map[string]any); ok {
				level = append(level, obj)
			}
		}
		if len(level) == 0 {
			return nil
		}
	}
	return nil
}

// stringify converts property value the way script engine converts it to
// string.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		if math.IsNaN(x) {
			return "NaN"
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case map[string]any:
		return "[object Object]"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			if e != nil && e != dom.Undefined {
				parts[i] = stringify(e)
			}
		}
		return strings.Join(parts, ",")
	}
	if v == dom.Undefined {
		return "undefined"
	}
	return fmt.Sprint(v)
}

// number reports numeric property values.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// newMatchesProperty builds :matches-property("path"="value").
func newMatchesProperty(_ *compiler, tok Token) (matcher, error) {
	pathPart, valuePart, hasValue := splitOutside(tok.Arg(), '=')
	pathPart = unquote(strings.TrimSpace(pathPart))
	if pathPart == "" {
		return nil, fmt.Errorf("%w: property path is required", ErrInvalidArgument)
	}
	segments, err := parsePropertyPath(pathPart)
	if err != nil {
		return nil, err
	}

	valueTest := func(any) bool { return true }
	if hasValue {
		value := unquote(strings.TrimSpace(valuePart))
		re, ok, err := parseRegexp(value)
		if err != nil {
			return nil, err
		}
		if ok {
			valueTest = func(v any) bool { return re.MatchString(stringify(v)) }
		} else {
			num, numErr := strconv.ParseFloat(value, 64)
			valueTest = func(v any) bool {
				if f, isNum := number(v); isNum && numErr == nil && f == num {
					return true
				}
				return stringify(v) == value
			}
		}
	}

	return func(n *html.Node, ctx *evalContext) bool {
		if !dom.IsElement(n) || ctx.doc == nil {
			return false
		}
		for _, v := range resolvePath(ctx.doc.Properties(n), segments) {
			if valueTest(v) {
				return true
			}
		}
		return false
	}, nil
}
