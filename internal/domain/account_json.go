package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// accountField is one managed attribute in stored order.
type accountField struct {
	key       string
	value     any
	set       bool
	omitEmpty bool
}

func (a Account) fields() []accountField {
	return []accountField{
		{key: "username", value: a.Username, set: a.Username != ""},
		{key: "password", value: a.Password, set: a.Password != ""},
		{key: "isAdmin", value: a.IsAdmin, set: a.IsAdmin},
		{key: "status", value: a.Status, set: a.Status != ""},
		{key: "joined", value: a.Joined, set: !a.Joined.IsZero() || a.Joined.Raw() != ""},
		{key: "revocationReason", value: a.RevocationReason, set: a.RevocationReason != nil, omitEmpty: true},
		{key: "revokedAt", value: a.RevokedAt, set: a.RevokedAt != nil, omitEmpty: true},
	}
}

// MarshalJSON writes managed attributes first, then Extra in key order. An
// unset managed attribute falls back to its Extra value when one was read.
func (a Account) MarshalJSON() ([]byte, error) {
	if len(a.opaque) > 0 {
		return a.opaque, nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		name, err := encodeValue(key)
		if err != nil {
			return err
		}
		raw, err := encodeValue(value)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(raw)
		return nil
	}

	managed := make(map[string]struct{}, 7)
	for _, f := range a.fields() {
		managed[f.key] = struct{}{}
		value := f.value
		if !f.set {
			if raw, ok := a.Extra[f.key]; ok {
				value = raw
			} else if f.omitEmpty {
				continue
			}
		}
		if err := write(f.key, value); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(a.Extra))
	for key := range a.Extra {
		if _, ok := managed[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := write(key, a.Extra[key]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads one record leniently: a managed attribute of the wrong
// type is left unset and kept in Extra, and a record that is not an object is
// kept as is.
func (a *Account) UnmarshalJSON(data []byte) error {
	*a = Account{}

	var attrs map[string]json.RawMessage
	if err := json.Unmarshal(data, &attrs); err != nil || attrs == nil {
		a.opaque = append(json.RawMessage(nil), data...)
		return nil
	}

	decode := func(key string, dst any) {
		raw, ok := attrs[key]
		if !ok {
			return
		}
		if err := json.Unmarshal(raw, dst); err == nil {
			delete(attrs, key)
		}
	}
	decode("username", &a.Username)
	decode("password", &a.Password)
	decode("isAdmin", &a.IsAdmin)
	decode("status", &a.Status)
	decode("joined", &a.Joined)
	decode("revocationReason", &a.RevocationReason)
	decode("revokedAt", &a.RevokedAt)

	if len(attrs) > 0 {
		a.Extra = attrs
	}
	return nil
}

// encodeValue marshals v without HTML escaping, matching the document encoder.
func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func withoutExtra(extra map[string]json.RawMessage, keys ...string) map[string]json.RawMessage {
	if len(extra) == 0 {
		return extra
	}
	next := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		next[k] = v
	}
	for _, k := range keys {
		delete(next, k)
	}
	if len(next) == 0 {
		return nil
	}
	return next
}
