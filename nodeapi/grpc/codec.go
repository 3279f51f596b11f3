package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

const codecName = "shardcoord"

type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// codec encodes node API messages, which carry their own wire format instead
// of being generated protobuf types.
type codec struct{}

var _ encoding.Codec = codec{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	msg, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("codec: unsupported message type %T", v)
	}

	return msg.Marshal()
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	msg, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("codec: unsupported message type %T", v)
	}

	return msg.Unmarshal(data)
}

func (codec) Name() string {
	return codecName
}
