package drag

import (
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// The payload crosses the host platform's drag transport as a flat,
// string-keyed JSON record. sjson builds the record field by field and
// gjson probes it on the way back in, so a malformed record degrades to a
// structured *PayloadError instead of a decode crash.

// Marshal serializes the payload for the drag transport.
func (p *Payload) Marshal() ([]byte, error) {
	data := []byte("{}")
	var err error

	set := func(path, value string) {
		if err != nil {
			return
		}
		data, err = sjson.SetBytes(data, path, value)
	}

	set("id", p.id)
	set("type", p.typ)
	set("name", p.name)
	set("category", p.category)
	if p.sourceID != "" {
		set("source_id", p.sourceID)
	}
	for _, k := range sortedKeys(p.properties) {
		set("properties."+escapePath(k), p.properties[k])
	}
	for _, k := range sortedKeys(p.metadata) {
		set("metadata."+escapePath(k), p.metadata[k])
	}

	return data, err
}

// UnmarshalPayload deserializes a drag-transport record. A record that is
// not JSON, or that is missing id, type, name, or category, is rejected
// with a *PayloadError naming every offending field.
func UnmarshalPayload(data []byte) (*Payload, error) {
	if !gjson.ValidBytes(data) {
		return nil, &PayloadError{Fields: []FieldError{
			{Field: "record", Reason: "not valid JSON"},
		}}
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &PayloadError{Fields: []FieldError{
			{Field: "record", Reason: "not a JSON object"},
		}}
	}

	spec := PayloadSpec{
		ID:       root.Get("id").String(),
		Type:     root.Get("type").String(),
		Name:     root.Get("name").String(),
		Category: root.Get("category").String(),
		SourceID: root.Get("source_id").String(),
	}

	if props := root.Get("properties"); props.IsObject() {
		spec.Properties = make(map[string]string)
		props.ForEach(func(key, value gjson.Result) bool {
			spec.Properties[key.String()] = value.String()
			return true
		})
	}
	if meta := root.Get("metadata"); meta.IsObject() {
		spec.Metadata = make(map[string]string)
		meta.ForEach(func(key, value gjson.Result) bool {
			spec.Metadata[key.String()] = value.String()
			return true
		})
	}

	return NewPayload(spec)
}

// escapePath escapes gjson/sjson path metacharacters in a map key.
func escapePath(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\':
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
