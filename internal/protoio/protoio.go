// Package protoio contains helpers for encoding and decoding protobuf wire
// format messages by hand, without generated code.
package protoio

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrUnexpectedType = errors.New("unexpected wire type")
	ErrUnsupported    = errors.New("unsupported wire type")
)

// Field is a single decoded top-level field of a message. Varint and fixed
// width values are stored in Uint, length-delimited values in Bytes.
type Field struct {
	Num   protowire.Number
	Type  protowire.Type
	Uint  uint64
	Bytes []byte
}

func (f Field) expect(typ protowire.Type) error {
	if f.Type != typ {
		return fmt.Errorf("field %d: %w: got %d, want %d", f.Num, ErrUnexpectedType, f.Type, typ)
	}

	return nil
}

// String returns the value of a length-delimited field as a string.
func (f Field) String() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}

	return string(f.Bytes), nil
}

// Message returns the raw bytes of an embedded message.
func (f Field) Message() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}

	return f.Bytes, nil
}

func (f Field) Uint64() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}

	return f.Uint, nil
}

func (f Field) Int() (int, error) {
	v, err := f.Uint64()
	return int(v), err
}

func (f Field) Bool() (bool, error) {
	v, err := f.Uint64()
	return v != 0, err
}

// Walk calls fn for every top-level field of the encoded message, in the
// order they appear on the wire. Unknown fields are passed to fn as well, so
// callers simply ignore field numbers they do not recognize.
func Walk(b []byte, fn func(f Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}

		b = b[n:]
		f := Field{Num: num, Type: typ}

		switch typ {
		case protowire.VarintType:
			f.Uint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.Uint = uint64(v)
		case protowire.Fixed64Type:
			f.Uint, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			return fmt.Errorf("field %d: %w: %d", num, ErrUnsupported, typ)
		}

		if n < 0 {
			return protowire.ParseError(n)
		}

		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}

	return nil
}

// AppendUint appends a varint field. Zero values are omitted.
func AppendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.VarintType)

	return protowire.AppendVarint(b, v)
}

// AppendBool appends a boolean field. False is omitted.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}

	return AppendUint(b, num, 1)
}

// AppendString appends a string field. Empty strings are omitted.
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if len(s) == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)

	return protowire.AppendString(b, s)
}

// AppendBytes appends a length-delimited field, even when it is empty.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendMessage appends an embedded message produced by encode. The message
// is always written, so that empty messages survive a round trip.
func AppendMessage(b []byte, num protowire.Number, encode func(b []byte) []byte) []byte {
	return AppendBytes(b, num, encode(nil))
}
