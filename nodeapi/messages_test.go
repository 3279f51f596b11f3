package nodeapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRequest_Marshal(t *testing.T) {
	tests := map[string]*PublishRequest{
		"Full":       {Version: 12, Full: true, State: []byte{1, 2, 3}},
		"EmptyState": {Version: 1, State: []byte{}},
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := req.Marshal()
			require.NoError(t, err)

			got := &PublishRequest{}
			require.NoError(t, got.Unmarshal(data))
			require.Equal(t, req, got)
		})
	}
}

func TestPublishResponse_Marshal(t *testing.T) {
	for _, resp := range []*PublishResponse{Ack(3), Nack(4, "expected version 2")} {
		data, err := resp.Marshal()
		require.NoError(t, err)

		got := &PublishResponse{}
		require.NoError(t, got.Unmarshal(data))
		require.Equal(t, resp, got)
	}
}

func TestPublishResponse_UnmarshalInvalid(t *testing.T) {
	err := (&PublishResponse{}).Unmarshal([]byte{0x1a, 0x05, 'a'})
	require.Error(t, err)
}

type handlerFunc func(ctx context.Context, req *PublishRequest) (*PublishResponse, error)

func (f handlerFunc) HandlePublish(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
	return f(ctx, req)
}

func TestLocalClient(t *testing.T) {
	client := NewLocalClient(handlerFunc(func(ctx context.Context, req *PublishRequest) (*PublishResponse, error) {
		return Ack(req.Version), nil
	}))

	resp, err := client.Publish(context.Background(), &PublishRequest{Version: 7})
	require.NoError(t, err)
	require.Equal(t, Ack(7), resp)

	require.NoError(t, client.Close())
	require.True(t, client.IsClosed())

	_, err = client.Publish(context.Background(), &PublishRequest{Version: 8})
	require.ErrorIs(t, err, ErrClientClosed)
}
