package match

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/valyala/fastjson"
)

// Record is a single match produced by the alerting engine. It is always an object.
type Record = Value

// Parse decodes a single JSON object into a Record.
func Parse(data []byte) (Record, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return Record{}, fmt.Errorf("parsing match: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return Record{}, fmt.Errorf("parsing match: expected object, got %s", v.Type())
	}
	return convert(v)
}

// ParseBatch decodes either a JSON array of objects or a single object.
func ParseBatch(data []byte) ([]Record, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing matches: %w", err)
	}

	switch v.Type() {
	case fastjson.TypeObject:
		rec, err := convert(v)
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil
	case fastjson.TypeArray:
		items, _ := v.Array()
		records := make([]Record, 0, len(items))
		for i, item := range items {
			if item.Type() != fastjson.TypeObject {
				return nil, fmt.Errorf("parsing matches: element %d: expected object, got %s", i, item.Type())
			}
			rec, err := convert(item)
			if err != nil {
				return nil, fmt.Errorf("parsing matches: element %d: %w", i, err)
			}
			records = append(records, rec)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("parsing matches: expected array or object, got %s", v.Type())
	}
}

// convert copies a fastjson value into a Value, detaching it from the parser's buffers.
func convert(v *fastjson.Value) (Value, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return Null(), nil
	case fastjson.TypeTrue:
		return Bool(true), nil
	case fastjson.TypeFalse:
		return Bool(false), nil
	case fastjson.TypeNumber:
		return Literal(v.String()), nil
	case fastjson.TypeString:
		b, err := v.StringBytes()
		if err != nil {
			return Value{}, err
		}
		return Str(string(b)), nil
	case fastjson.TypeArray:
		items, err := v.Array()
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, 0, len(items))
		for _, item := range items {
			c, err := convert(item)
			if err != nil {
				return Value{}, err
			}
			out = append(out, c)
		}
		return Array(out...), nil
	case fastjson.TypeObject:
		obj, err := v.Object()
		if err != nil {
			return Value{}, err
		}
		members := make([]Member, 0, obj.Len())
		var visitErr error
		obj.Visit(func(key []byte, child *fastjson.Value) {
			if visitErr != nil {
				return
			}
			c, err := convert(child)
			if err != nil {
				visitErr = fmt.Errorf("key %q: %w", key, err)
				return
			}
			members = append(members, Member{Key: string(key), Value: c})
		})
		if visitErr != nil {
			return Value{}, visitErr
		}
		return Object(members...), nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON type %s", v.Type())
	}
}

// FromMap builds a Record from a native map. Go maps are unordered, so keys are
// sorted at every nesting level.
func FromMap(m map[string]any) Record {
	return fromAny(m)
}

func fromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return Str(t)
	case int:
		return Num(int64(t))
	case int32:
		return Num(int64(t))
	case int64:
		return Num(t)
	case uint:
		return Literal(strconv.FormatUint(uint64(t), 10))
	case uint64:
		return Literal(strconv.FormatUint(t, 10))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case json.Number:
		return Literal(t.String())
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, 0, len(keys))
		for _, k := range keys {
			members = append(members, Member{Key: k, Value: fromAny(t[k])})
		}
		return Object(members...)
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, fromAny(item))
		}
		return Array(items...)
	case []string:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			items = append(items, Str(item))
		}
		return Array(items...)
	default:
		return Str(fmt.Sprint(t))
	}
}
