package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Resolve replaces ServerTimestamp sentinels in data with now and normalises
// every value to its JSON form. Array sentinels are rejected.
// Adapters that persist documents as JSON call it from Set.
func Resolve(data map[string]any, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch v.(type) {
		case ArrayUnionOp, ArrayRemoveOp:
			return nil, fmt.Errorf("docstore: array sentinel not allowed in set for field %q", k)
		}
		if IsServerTimestamp(v) {
			v = now
		}
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("docstore: field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Apply merges updates into a copy of doc. Adapters that cannot express the
// sentinels natively call it inside a per-document transaction.
func Apply(doc map[string]any, updates []Update, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(doc)+len(updates))
	for k, v := range doc {
		out[k] = v
	}
	for _, u := range updates {
		if u.Path == "" {
			return nil, fmt.Errorf("docstore: empty update path")
		}
		switch op := u.Value.(type) {
		case ArrayUnionOp:
			cur, err := arrayField(out, u.Path)
			if err != nil {
				return nil, err
			}
			for _, e := range op.Elems {
				ne, err := normalize(e)
				if err != nil {
					return nil, err
				}
				if indexOf(cur, ne) < 0 {
					cur = append(cur, ne)
				}
			}
			out[u.Path] = cur
		case ArrayRemoveOp:
			cur, err := arrayField(out, u.Path)
			if err != nil {
				return nil, err
			}
			for _, e := range op.Elems {
				ne, err := normalize(e)
				if err != nil {
					return nil, err
				}
				kept := cur[:0:0]
				for _, c := range cur {
					if !reflect.DeepEqual(c, ne) {
						kept = append(kept, c)
					}
				}
				cur = kept
			}
			out[u.Path] = cur
		default:
			v := u.Value
			if IsServerTimestamp(v) {
				v = now
			}
			nv, err := normalize(v)
			if err != nil {
				return nil, fmt.Errorf("docstore: field %q: %w", u.Path, err)
			}
			out[u.Path] = nv
		}
	}
	return out, nil
}

func arrayField(doc map[string]any, path string) ([]any, error) {
	switch cur := doc[path].(type) {
	case nil:
		return []any{}, nil
	case []any:
		return append([]any{}, cur...), nil
	default:
		return nil, fmt.Errorf("docstore: field %q is not an array", path)
	}
}

func indexOf(arr []any, v any) int {
	for i, e := range arr {
		if reflect.DeepEqual(e, v) {
			return i
		}
	}
	return -1
}

// normalize round-trips v through JSON so comparisons see the stored form.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
