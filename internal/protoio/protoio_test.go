package protoio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestWalk(t *testing.T) {
	var b []byte
	b = AppendUint(b, 1, 42)
	b = AppendString(b, 2, "hello")
	b = AppendBool(b, 3, true)
	b = AppendMessage(b, 4, func(b []byte) []byte {
		return AppendString(b, 1, "nested")
	})

	var (
		num    uint64
		str    string
		flag   bool
		nested string
	)

	err := Walk(b, func(f Field) error {
		var err error

		switch f.Num {
		case 1:
			num, err = f.Uint64()
		case 2:
			str, err = f.String()
		case 3:
			flag, err = f.Bool()
		case 4:
			var msg []byte
			if msg, err = f.Message(); err == nil {
				err = Walk(msg, func(f Field) error {
					nested, err = f.String()
					return err
				})
			}
		}

		return err
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(42), num)
	assert.Equal(t, "hello", str)
	assert.True(t, flag)
	assert.Equal(t, "nested", nested)
}

func TestWalk_ZeroValuesOmitted(t *testing.T) {
	var b []byte
	b = AppendUint(b, 1, 0)
	b = AppendString(b, 2, "")
	b = AppendBool(b, 3, false)

	assert.Empty(t, b)
}

func TestWalk_UnexpectedType(t *testing.T) {
	b := AppendString(nil, 1, "not a number")

	err := Walk(b, func(f Field) error {
		_, err := f.Uint64()
		return err
	})

	assert.ErrorIs(t, err, ErrUnexpectedType)
}

func TestWalk_Truncated(t *testing.T) {
	b := AppendString(nil, 1, "truncated")
	b = b[:len(b)-2]

	err := Walk(b, func(f Field) error { return nil })
	assert.Error(t, err)
}

func TestWalk_Fixed(t *testing.T) {
	b := protowire.AppendTag(nil, 5, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 7)

	var got uint64

	err := Walk(b, func(f Field) error {
		got = f.Uint
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(7), got)
}
