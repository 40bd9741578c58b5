package decision

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	intFields     = map[string]bool{"out_id": true, "in_id": true, "captain_id": true}
	intListFields = map[string]bool{"xi_ids": true, "bench_order": true, "squad_ids": true}
	fieldAliases  = map[string]string{"bench_ids": "bench_order", "xi": "xi_ids", "squad": "squad_ids"}
)

// coerceObject decodes a JSON object into a generic document, repairing the
// usual model slips: ids sent as strings or floats, booleans sent as strings
// and a couple of alternate key names.
func coerceObject(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty json")
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("invalid json")
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("root must be a json object")
	}
	doc := make(map[string]any)
	root.ForEach(func(k, v gjson.Result) bool {
		key := strings.ToLower(strings.TrimSpace(k.String()))
		if alias, ok := fieldAliases[key]; ok {
			if root.Get(alias).Exists() {
				return true
			}
			key = alias
		}
		switch {
		case intFields[key]:
			doc[key] = coerceInt(v)
		case intListFields[key]:
			doc[key] = coerceIntList(v)
		case key == "made":
			doc[key] = coerceBool(v)
		default:
			doc[key] = v.Value()
		}
		return true
	})
	return doc, nil
}

func coerceInt(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return v.Num
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return v.Str
	default:
		return v.Value()
	}
}

func coerceIntList(v gjson.Result) any {
	if !v.IsArray() {
		return v.Value()
	}
	out := make([]any, 0, 15)
	v.ForEach(func(_, item gjson.Result) bool {
		out = append(out, coerceInt(item))
		return true
	})
	return out
}

func coerceBool(v gjson.Result) any {
	if v.Type == gjson.String {
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return v.Value()
}

// docReader reads typed fields off a coerced document. The first field that
// does not hold a whole-number id is kept in err and later reads are no-ops.
type docReader struct {
	doc map[string]any
	err error
}

func toID(key string, v any) (int, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s: %v is not an id", key, v)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s: %v is not a whole number", key, f)
	}
	return int(f), nil
}

// id reads an optional id; absent and null both mean nil.
func (r *docReader) id(key string) *int {
	v, ok := r.doc[key]
	if r.err != nil || !ok || v == nil {
		return nil
	}
	n, err := toID(key, v)
	if err != nil {
		r.err = err
		return nil
	}
	return &n
}

// ids reads an optional id list. Every item must be an id; nothing is dropped.
func (r *docReader) ids(key string) []int {
	v, ok := r.doc[key]
	if r.err != nil || !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		r.err = fmt.Errorf("%s: not a list", key)
		return nil
	}
	out := make([]int, 0, len(items))
	for i, it := range items {
		n, err := toID(fmt.Sprintf("%s[%d]", key, i), it)
		if err != nil {
			r.err = err
			return nil
		}
		out = append(out, n)
	}
	return out
}

func docString(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return strings.TrimSpace(s)
}

func docBool(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool)
	return b
}
