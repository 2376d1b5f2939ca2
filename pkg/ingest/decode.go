package ingest

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/hostscan/hostscan/pkg/record"
)

// DecodeError reports a record line that could not be decoded.
type DecodeError struct {
	// Line is the 1-based input line, 0 when unknown.
	Line int
	// Path is the JSON key path of the offending value, empty for syntax errors.
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	msg := "decode record"
	if e.Line > 0 {
		msg = fmt.Sprintf("decode record at line %d", e.Line)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", msg, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode failure causes, matched with errors.Is.
var (
	ErrUnknownField = errors.New("unknown field")
	ErrWrongType    = errors.New("wrong type")
)

// Decoder turns JSON record lines into raw records. It is safe for
// concurrent use.
type Decoder struct {
	strict bool
	pool   fastjson.ParserPool
}

// NewDecoder returns a Decoder. In strict mode unknown keys on record and
// response objects are errors. TLS objects are the scanner's full connection
// state; only the handshake summary is kept from them in either mode.
func NewDecoder(strict bool) *Decoder {
	return &Decoder{strict: strict}
}

// DecodeLine decodes one input line. Errors carry the line number.
func (d *Decoder) DecodeLine(l Line) (record.RawRecord, error) {
	rec, err := d.Decode(l.Data)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Line = l.Number
		}
	}
	return rec, err
}

// Decode decodes one JSON record.
func (d *Decoder) Decode(data []byte) (record.RawRecord, error) {
	p := d.pool.Get()
	defer d.pool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return record.RawRecord{}, &DecodeError{Err: err}
	}

	var rec record.RawRecord
	if err := d.decodeRecord(v, &rec); err != nil {
		return record.RawRecord{}, err
	}
	return rec, nil
}

type visitor struct {
	err error
}

// visit walks the members of an object at path and stops on the first error.
func (vs *visitor) visit(path string, v *fastjson.Value, fn func(key string, path string, v *fastjson.Value) error) error {
	o, err := v.Object()
	if err != nil {
		return typeError(path, "object", v)
	}
	o.Visit(func(k []byte, child *fastjson.Value) {
		if vs.err != nil {
			return
		}
		key := string(k)
		vs.err = fn(key, join(path, key), child)
	})
	return vs.err
}

func (d *Decoder) decodeRecord(v *fastjson.Value, rec *record.RawRecord) error {
	var vs visitor
	return vs.visit("", v, func(key, path string, v *fastjson.Value) error {
		var err error
		switch key {
		case "Alexa_rank":
			rec.AlexaRank, err = optInt64(path, v)
		case "Alexa_domain":
			rec.AlexaDomain, err = optString(path, v)
		case "DMOZ_title":
			rec.DMOZTitle, err = optString(path, v)
		case "DMOZ_description":
			rec.DMOZDescription, err = optString(path, v)
		case "DMOZ_url":
			rec.DMOZURL, err = optString(path, v)
		case "DMOZ_topic":
			rec.DMOZTopic, err = stringList(path, v)
		case "Host":
			rec.Host, err = str(path, v)
		case "FinalLocation":
			rec.FinalLocation, err = str(path, v)
		case "HTTPOk":
			rec.HTTPOk, err = boolean(path, v)
		case "HTTPSOk":
			rec.HTTPSOk, err = boolean(path, v)
		case "HTTPSOnly":
			rec.HTTPSOnly, err = boolean(path, v)
		case "Error":
			rec.Error, err = str(path, v)
		case record.FieldHTTPResponses:
			rec.HTTPResponses, err = d.responses(path, v)
		case record.FieldHTTPSResponses:
			rec.HTTPSResponses, err = d.responses(path, v)
		default:
			err = d.unknown(path)
		}
		return err
	})
}

func (d *Decoder) responses(path string, v *fastjson.Value) ([]record.RawResponse, error) {
	if v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	items, err := v.Array()
	if err != nil {
		return nil, typeError(path, "array", v)
	}
	out := make([]record.RawResponse, len(items))
	for i, item := range items {
		if err := d.response(fmt.Sprintf("%s[%d]", path, i), item, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Decoder) response(path string, v *fastjson.Value, resp *record.RawResponse) error {
	var vs visitor
	return vs.visit(path, v, func(key, path string, v *fastjson.Value) error {
		var err error
		switch key {
		case "RequestURL":
			resp.RequestURL, err = str(path, v)
		case "Status":
			resp.Status, err = integer(path, v)
		case "Protocol":
			resp.Protocol, err = str(path, v)
		case "Headers":
			resp.Headers, err = headers(path, v)
		case "TLS":
			resp.TLS, err = tlsInfo(path, v)
		default:
			err = d.unknown(path)
		}
		return err
	})
}

func headers(path string, v *fastjson.Value) (map[string][]string, error) {
	if v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	out := make(map[string][]string)
	var vs visitor
	err := vs.visit(path, v, func(key, path string, v *fastjson.Value) error {
		values, err := stringList(path, v)
		if err != nil {
			return err
		}
		if values == nil {
			values = []string{}
		}
		out[key] = values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func tlsInfo(path string, v *fastjson.Value) (*record.RawTLSInfo, error) {
	if v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	info := &record.RawTLSInfo{}
	var vs visitor
	err := vs.visit(path, v, func(key, path string, v *fastjson.Value) error {
		var err error
		switch key {
		case "HandshakeComplete":
			info.HandshakeComplete, err = boolean(path, v)
		case "NegotiatedProtocol":
			info.NegotiatedProtocol, err = str(path, v)
		case "ServerName":
			info.ServerName, err = str(path, v)
		case "Version":
			info.Version, err = integer(path, v)
		case "CipherSuite":
			info.CipherSuite, err = integer(path, v)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (d *Decoder) unknown(path string) error {
	if !d.strict {
		return nil
	}
	return &DecodeError{Path: path, Err: ErrUnknownField}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func typeError(path, want string, v *fastjson.Value) error {
	return &DecodeError{Path: path, Err: fmt.Errorf("%w: want %s, got %s", ErrWrongType, want, v.Type())}
}

func str(path string, v *fastjson.Value) (string, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return "", nil
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b), nil
	default:
		return "", typeError(path, "string", v)
	}
}

func optString(path string, v *fastjson.Value) (*string, error) {
	if v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	s, err := str(path, v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func boolean(path string, v *fastjson.Value) (bool, error) {
	switch v.Type() {
	case fastjson.TypeNull, fastjson.TypeFalse:
		return false, nil
	case fastjson.TypeTrue:
		return true, nil
	default:
		return false, typeError(path, "boolean", v)
	}
}

func integer(path string, v *fastjson.Value) (int, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return 0, nil
	case fastjson.TypeNumber:
		n, err := v.Int()
		if err != nil {
			return 0, &DecodeError{Path: path, Err: fmt.Errorf("%w: %v", ErrWrongType, err)}
		}
		return n, nil
	default:
		return 0, typeError(path, "integer", v)
	}
}

func optInt64(path string, v *fastjson.Value) (*int64, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return nil, nil
	case fastjson.TypeNumber:
		n, err := v.Int64()
		if err != nil {
			return nil, &DecodeError{Path: path, Err: fmt.Errorf("%w: %v", ErrWrongType, err)}
		}
		return &n, nil
	default:
		return nil, typeError(path, "integer", v)
	}
}

func stringList(path string, v *fastjson.Value) ([]string, error) {
	if v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	items, err := v.Array()
	if err != nil {
		return nil, typeError(path, "array", v)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, err := str(fmt.Sprintf("%s[%d]", path, i), item)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
