package field

import (
	"encoding/json"

	"github.com/PaesslerAG/jsonpath"
	"github.com/tidwall/gjson"

	"github.com/ironbee-go/engine/internal/status"
)

// JSONPathGet evaluates a JSONPath expression against the byte-string
// value of the base field and returns the addressed value as a new Field
// named name. It first tries a cheap gjson existence/extraction pass for
// the common case of a plain dotted path (gjson's path dialect is a
// strict subset of JSONPath); only when gjson can't resolve the path does
// it fall back to full github.com/PaesslerAG/jsonpath evaluation, which
// supports filters and wildcards gjson does not.
//
// This backs the `jsonpath:<field>:<path>` target extension from
// SPEC_FULL.md §B.
func JSONPathGet(base *Field, path string, name string) (*Field, status.Status) {
	if base == nil || base.Type != TypeByteStr {
		return nil, status.Invalid("jsonpath target requires a byte-string base field")
	}

	if res := gjson.GetBytes(base.Bytes, gjsonPath(path)); res.Exists() {
		return gjsonFieldFrom(name, res), status.Ok()
	}

	var doc any
	if err := json.Unmarshal(base.Bytes, &doc); err != nil {
		return nil, status.Invalid("jsonpath target: invalid JSON body: " + err.Error())
	}
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, status.NotFound("jsonpath: " + err.Error())
	}
	return fieldFromAny(name, v), status.Ok()
}

// gjsonPath converts a dotted JSONPath-ish expression ("$.user.id") into
// gjson's own dialect ("user.id"); gjson has no leading "$." root marker.
func gjsonPath(path string) string {
	if len(path) >= 2 && path[0] == '$' && path[1] == '.' {
		return path[2:]
	}
	return path
}

func gjsonFieldFrom(name string, res gjson.Result) *Field {
	switch res.Type {
	case gjson.Number:
		return NewNum(name, res.Num)
	case gjson.String:
		return NewByteStr(name, []byte(res.Str))
	case gjson.True, gjson.False:
		if res.Bool() {
			return NewNum(name, 1)
		}
		return NewNum(name, 0)
	default:
		if res.IsArray() {
			var elems []*Field
			res.ForEach(func(_, v gjson.Result) bool {
				elems = append(elems, gjsonFieldFrom(name, v))
				return true
			})
			return NewList(name, elems)
		}
		return NewByteStr(name, []byte(res.Raw))
	}
}

func fieldFromAny(name string, v any) *Field {
	switch t := v.(type) {
	case float64:
		return NewNum(name, t)
	case string:
		return NewByteStr(name, []byte(t))
	case bool:
		if t {
			return NewNum(name, 1)
		}
		return NewNum(name, 0)
	case []any:
		elems := make([]*Field, len(t))
		for i, e := range t {
			elems[i] = fieldFromAny(name, e)
		}
		return NewList(name, elems)
	default:
		return NewByteStr(name, []byte(""))
	}
}
