package grpcutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorCode(t *testing.T) {
	err := status.New(codes.DataLoss, "").Err()

	assert.Equal(t, codes.DataLoss, ErrorCode(err))
	assert.Equal(t, codes.Unknown, ErrorCode(assert.AnError))
	assert.Equal(t, codes.OK, ErrorCode(nil))
}

func TestIsCanceled(t *testing.T) {
	assert.True(t, IsCanceled(status.FromContextError(context.Canceled).Err()))
	assert.True(t, IsCanceled(status.FromContextError(context.DeadlineExceeded).Err()))
	assert.False(t, IsCanceled(status.Error(codes.Internal, "boom")))
}

func TestErrorInfo(t *testing.T) {
	st, _ := status.New(codes.DataLoss, "data loss").WithDetails(&errdetails.ErrorInfo{
		Domain: "domain",
		Reason: "reason",
	})

	info := ErrorInfo(st.Err())
	assert.Equal(t, "domain", info.Domain)
	assert.Equal(t, "reason", info.Reason)
}

func TestErrorInfo_NoErrorInfo(t *testing.T) {
	err := status.New(codes.DataLoss, "").Err()
	assert.Nil(t, ErrorInfo(err))
}

func TestErrorInfo_NotGrpcError(t *testing.T) {
	assert.Nil(t, ErrorInfo(assert.AnError))
}

func TestErrorWithReason(t *testing.T) {
	err := ErrorWithReason(codes.Unavailable, "NODE_CLOSING", "node is shutting down")

	assert.Equal(t, codes.Unavailable, ErrorCode(err))
	assert.Equal(t, "NODE_CLOSING", Reason(err))
	assert.Equal(t, ErrorDomain, ErrorInfo(err).Domain)
}

func TestReason_FallsBackToMessage(t *testing.T) {
	err := status.Error(codes.Internal, "something broke")
	assert.Equal(t, "something broke", Reason(err))
}
