package nodeapi

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/maxpoletaev/shardcoord/internal/protoio"
)

type PublishOutcome uint8

const (
	OutcomeAck PublishOutcome = iota + 1
	OutcomeNack
)

func (o PublishOutcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeNack:
		return "nack"
	default:
		return ""
	}
}

// PublishRequest carries a new cluster state. The state is sent in its binary
// encoding, see clusterstate.Marshal. Full is set when the receiver is known to
// be behind and the state replaces whatever it has.
type PublishRequest struct {
	Version uint64
	Full    bool
	State   []byte
}

type PublishResponse struct {
	Version uint64
	Outcome PublishOutcome
	Reason  string
}

func Ack(version uint64) *PublishResponse {
	return &PublishResponse{Version: version, Outcome: OutcomeAck}
}

func Nack(version uint64, reason string) *PublishResponse {
	return &PublishResponse{Version: version, Outcome: OutcomeNack, Reason: reason}
}

const (
	fieldRequestVersion protowire.Number = 1
	fieldRequestFull    protowire.Number = 2
	fieldRequestState   protowire.Number = 3

	fieldResponseVersion protowire.Number = 1
	fieldResponseOutcome protowire.Number = 2
	fieldResponseReason  protowire.Number = 3
)

func (r *PublishRequest) Marshal() ([]byte, error) {
	b := protoio.AppendUint(nil, fieldRequestVersion, r.Version)
	b = protoio.AppendBool(b, fieldRequestFull, r.Full)
	b = protoio.AppendBytes(b, fieldRequestState, r.State)

	return b, nil
}

func (r *PublishRequest) Unmarshal(data []byte) error {
	*r = PublishRequest{}

	err := protoio.Walk(data, func(f protoio.Field) (err error) {
		switch f.Num {
		case fieldRequestVersion:
			r.Version, err = f.Uint64()
		case fieldRequestFull:
			r.Full, err = f.Bool()
		case fieldRequestState:
			var state []byte
			if state, err = f.Message(); err == nil {
				r.State = make([]byte, len(state))
				copy(r.State, state)
			}
		}

		return err
	})

	if err != nil {
		return fmt.Errorf("decode publish request: %w", err)
	}

	return nil
}

func (r *PublishResponse) Marshal() ([]byte, error) {
	b := protoio.AppendUint(nil, fieldResponseVersion, r.Version)
	b = protoio.AppendUint(b, fieldResponseOutcome, uint64(r.Outcome))
	b = protoio.AppendString(b, fieldResponseReason, r.Reason)

	return b, nil
}

func (r *PublishResponse) Unmarshal(data []byte) error {
	*r = PublishResponse{}

	err := protoio.Walk(data, func(f protoio.Field) (err error) {
		switch f.Num {
		case fieldResponseVersion:
			r.Version, err = f.Uint64()
		case fieldResponseOutcome:
			var v uint64
			v, err = f.Uint64()
			r.Outcome = PublishOutcome(v)
		case fieldResponseReason:
			r.Reason, err = f.String()
		}

		return err
	})

	if err != nil {
		return fmt.Errorf("decode publish response: %w", err)
	}

	return nil
}
