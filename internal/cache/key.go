package cache

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"
)

// Params is the parameter set a cache key is derived from.
type Params map[string]any

// Key returns the hex BLAKE2b-256 digest of the canonical form of params.
// Keys are serialized in sorted order, nil and empty values are dropped, string slices
// and string-keyed sets are treated as unordered and sorted first, so two
// parameter sets with equal contents always produce the same key.
func Key(params Params) string {
	sum := blake2b.Sum256(Canonical(params))
	return hex.EncodeToString(sum[:])
}

// NamespacedKey prefixes Key with a namespace so unrelated callers sharing
// one store cannot collide.
func NamespacedKey(namespace string, params Params) string {
	return namespace + ":" + Key(params)
}

// Canonical is the byte form Key hashes.
func Canonical(params Params) []byte {
	names := make([]string, 0, len(params))
	for name, v := range params {
		if normalize(v) == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		buf.Write(encode(name))
		buf.WriteByte('=')
		buf.Write(encode(normalize(params[name])))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func encode(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%v", v))
	}
	return raw
}

type pair struct {
	K string `json:"k"`
	V any    `json:"v"`
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		if len(t) == 0 {
			return nil
		}
		out := append([]string(nil), t...)
		sort.Strings(out)
		return out
	case map[string]struct{}:
		if len(t) == 0 {
			return nil
		}
		return sortedKeys(t)
	case map[string]bool:
		set := make(map[string]struct{}, len(t))
		for k, ok := range t {
			if ok {
				set[k] = struct{}{}
			}
		}
		if len(set) == 0 {
			return nil
		}
		return sortedKeys(set)
	case Params:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	return v
}

func normalizeMap(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	out := make([]pair, 0, len(m))
	for k, v := range m {
		if n := normalize(v); n != nil {
			out = append(out, pair{K: k, V: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].K < out[j].K })
	return out
}

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
