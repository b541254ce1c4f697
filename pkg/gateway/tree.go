package gateway

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Flatten encodes value as JSON and splits it into leaf values keyed by their
// absolute path below base. Objects and arrays become child keys, arrays use
// their indexes. Nulls and empty containers produce no leaves.
func Flatten(base string, value interface{}) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "encode value")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, errors.Wrap(err, "decode value")
	}
	leaves := map[string]json.RawMessage{}
	if err := flatten(base, generic, leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func flatten(path string, v interface{}, out map[string]json.RawMessage) error {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		for k, child := range val {
			if !ValidSegment(k) {
				return errors.Wrapf(ErrInvalidPath, "key %q below %s", k, path)
			}
			if err := flatten(path+"/"+k, child, out); err != nil {
				return err
			}
		}
	case []interface{}:
		for i, child := range val {
			if err := flatten(path+"/"+strconv.Itoa(i), child, out); err != nil {
				return err
			}
		}
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return errors.Wrapf(err, "encode leaf %s", path)
		}
		out[path] = raw
	}
	return nil
}

// Assemble rebuilds the JSON value at base from leaves keyed by absolute
// path. Objects whose keys are exactly 0..n-1 are turned back into arrays.
// It returns nil when there are no leaves at or below base.
func Assemble(base string, leaves map[string]json.RawMessage) (json.RawMessage, error) {
	if raw, ok := leaves[base]; ok {
		return raw, nil
	}
	root := map[string]interface{}{}
	found := false
	paths := make([]string, 0, len(leaves))
	for p := range leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if !IsAncestor(base, p) {
			continue
		}
		found = true
		rel := strings.Split(strings.TrimPrefix(p, base+"/"), "/")
		node := root
		for i, seg := range rel {
			if i == len(rel)-1 {
				node[seg] = leaves[p]
				break
			}
			next, ok := node[seg].(map[string]interface{})
			if !ok {
				next = map[string]interface{}{}
				node[seg] = next
			}
			node = next
		}
	}
	if !found {
		return nil, nil
	}
	raw, err := json.Marshal(arrayify(root))
	if err != nil {
		return nil, errors.Wrapf(err, "assemble %s", base)
	}
	return raw, nil
}

func arrayify(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	for k, child := range m {
		m[k] = arrayify(child)
	}
	list := make([]interface{}, len(m))
	for k, child := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) || strconv.Itoa(i) != k {
			return m
		}
		list[i] = child
	}
	if len(list) == 0 {
		return m
	}
	return list
}
