// Package payload encodes and decodes JSON request and response bodies whose
// field set is open: the typed fields of a Go struct, plus any number of
// additional members carried in a map.
//
// Typed fields always win. An extra member whose name matches a typed field
// (compared case-insensitively, as encoding/json does when decoding) is
// dropped on Marshal and never reported by Unmarshal.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrNotObject is returned when a payload is not a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// Marshal encodes v, which must encode to a JSON object, and adds every
// member of extra that does not collide with a field of v.
func Marshal(v any, extra map[string]any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if len(extra) == 0 {
		return data, nil
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, ErrNotObject
	}

	known := knownFields(reflect.TypeOf(v))

	// Sorted for deterministic output.
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !known[strings.ToLower(k)] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "" {
			// sjson has no path for the empty key.
			data, err = appendMember(data, k, extra[k])
		} else {
			data, err = sjson.SetBytes(data, escapePath(k), extra[k])
		}
		if err != nil {
			return nil, fmt.Errorf("set extra member %q: %w", k, err)
		}
	}
	return data, nil
}

// appendMember adds key and value as the last member of the object in data.
func appendMember(data []byte, key string, value any) ([]byte, error) {
	encKey, err := json.Marshal(key)
	if err != nil {
		return nil, err
	}
	encValue, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	end := bytes.LastIndexByte(data, '}')
	if end < 0 {
		return nil, ErrNotObject
	}
	body := bytes.TrimSpace(data[bytes.IndexByte(data, '{')+1 : end])

	out := make([]byte, 0, len(data)+len(encKey)+len(encValue)+2)
	out = append(out, data[:end]...)
	if len(body) > 0 {
		out = append(out, ',')
	}
	out = append(out, encKey...)
	out = append(out, ':')
	out = append(out, encValue...)
	return append(out, data[end:]...), nil
}

// Unmarshal decodes data into v and returns the members of the object that
// no field of v claimed. The returned map is never nil.
func Unmarshal(data []byte, v any) (map[string]any, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("unmarshal payload: invalid JSON")
	}
	parsed := gjson.ParseBytes(data)
	if !parsed.IsObject() {
		return nil, ErrNotObject
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	known := knownFields(reflect.TypeOf(v))
	extra := make(map[string]any)
	parsed.ForEach(func(key, value gjson.Result) bool {
		if !known[strings.ToLower(key.String())] {
			extra[key.String()] = value.Value()
		}
		return true
	})
	return extra, nil
}

// escapePath turns an object key into a literal sjson path.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var fieldCache sync.Map // reflect.Type -> map[string]bool

// knownFields returns the lowercased JSON member names encoding/json uses
// for t, following embedded structs the way encoding/json does.
func knownFields(t reflect.Type) map[string]bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return map[string]bool{}
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string]bool)
	}

	known := make(map[string]bool)
	collectFields(t, known)
	fieldCache.Store(t, known)
	return known
}

func collectFields(t reflect.Type, known map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectFields(ft, known)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		known[strings.ToLower(name)] = true
	}
}
