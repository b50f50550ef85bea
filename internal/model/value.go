// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model holds the wire-level and in-process data shapes shared
// across the escalation, receiver, and tarpit subsystems.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Value is a dynamically-shaped JSON value. It exists because the original
// service treats request headers and webhook "details" as open maps of
// arbitrary JSON, not a fixed schema; Go needs a concrete sum type to carry
// that through typed structs without losing information.
type Value struct {
	Kind ValueKind
	Bool bool
	Num  float64
	Str  string
	List []Value
	Map  map[string]Value
}

// ValueKind discriminates which field of Value is populated.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func NullValue() Value           { return Value{Kind: KindNull} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func ListValue(items ...Value) Value { return Value{Kind: KindList, List: items} }

func MapValue(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{Kind: KindMap, Map: m}
}

// FromAny converts a decoded interface{} (as produced by encoding/json into
// an `any`) into a Value. Unknown concrete types stringify via fmt.Sprint.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(t)
	case float64:
		return NumberValue(t)
	case string:
		return StringValue(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			items = append(items, FromAny(e))
		}
		return Value{Kind: KindList, List: items}
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return StringValue(fmt.Sprint(t))
	}
}

// Any converts the Value back into a plain interface{} tree suitable for
// encoding/json or text formatting.
func (v Value) Any() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num
	case KindString:
		return v.Str
	case KindList:
		out := make([]any, 0, len(v.List))
		for _, e := range v.List {
			out = append(out, e.Any())
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.Any()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON renders the Value as whichever concrete JSON shape its Kind holds.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes any JSON value into the matching Kind.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// String returns a best-effort flat string rendering, used by sinks that
// need plain text (e.g. the SMTP alert body).
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindString:
		return v.Str
	case KindList:
		return fmt.Sprint(v.Any())
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ", "
			}
			out += k + ": " + v.Map[k].String()
		}
		return out + "}"
	default:
		return ""
	}
}
