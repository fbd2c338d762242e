package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const NameJSON = "json"

// JSON is the default Codec. The zero value is ready to use.
//
// Envelope:
//
//	{"v":1,"__type":"Buffer","base64":"..."}
//	{"v":1,"__type":"Map","entries":[["/path","<base64>"],...]}
//	{"v":1,"__type":"Stream","base64":"..."}
type JSON struct{}

var _ Codec = JSON{}

type jsonEnvelope struct {
	V       uint64      `json:"v"`
	Type    string      `json:"__type"`
	Base64  *string     `json:"base64,omitempty"`
	Entries [][2]string `json:"entries,omitempty"`
}

var jsonTypes = map[Kind]string{
	KindBlob:     "Buffer",
	KindSegments: "Map",
	KindStream:   "Stream",
}

func jsonKind(t string) Kind {
	for k, name := range jsonTypes {
		if name == t {
			return k
		}
	}
	return 0
}

func (JSON) Name() string { return NameJSON }

func (JSON) Encode(v Value) (string, error) {
	if err := v.validate(); err != nil {
		return "", err
	}
	env := jsonEnvelope{V: envelopeVersion, Type: jsonTypes[v.Kind]}
	switch v.Kind {
	case KindBlob, KindStream:
		s := base64.StdEncoding.EncodeToString(v.Blob)
		env.Base64 = &s
	case KindSegments:
		env.Entries = make([][2]string, 0, len(v.Segments))
		for _, seg := range v.Segments {
			env.Entries = append(env.Entries, [2]string{seg.Path, base64.StdEncoding.EncodeToString(seg.Data)})
		}
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (JSON) Decode(s string) (Value, error) {
	var env jsonEnvelope
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return Value{}, decodeErr(NameJSON, "malformed envelope", err)
	}
	if dec.More() {
		return Value{}, decodeErr(NameJSON, "trailing data after envelope", nil)
	}
	kind := jsonKind(env.Type)
	if err := checkEnvelope(NameJSON, env.V, kind); err != nil {
		return Value{}, err
	}

	v := Value{Kind: kind}
	switch kind {
	case KindBlob, KindStream:
		if env.Base64 == nil {
			return Value{}, decodeErr(NameJSON, "missing base64 body", nil)
		}
		b, err := base64.StdEncoding.DecodeString(*env.Base64)
		if err != nil {
			return Value{}, decodeErr(NameJSON, "bad base64 body", err)
		}
		v.Blob = b
	case KindSegments:
		v.Segments = make([]Segment, 0, len(env.Entries))
		for i, e := range env.Entries {
			b, err := base64.StdEncoding.DecodeString(e[1])
			if err != nil {
				return Value{}, decodeErr(NameJSON, fmt.Sprintf("bad base64 in segment %d", i), err)
			}
			v.Segments = append(v.Segments, Segment{Path: e[0], Data: b})
		}
		if err := v.validate(); err != nil {
			return Value{}, decodeErr(NameJSON, "invalid segments", err)
		}
	}
	return finish(v), nil
}
