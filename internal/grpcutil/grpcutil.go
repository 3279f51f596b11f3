package grpcutil

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is attached to every ErrorInfo produced by this module.
const ErrorDomain = "shardcoord"

// ErrorCode extracts a gRPC error code from an error. If the error is not a
// gRPC error, it returns codes.Unknown.
func ErrorCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}

	if st, ok := status.FromError(err); ok {
		return st.Code()
	}

	return codes.Unknown
}

func IsCanceled(err error) bool {
	code := ErrorCode(err)
	return code == codes.Canceled || code == codes.DeadlineExceeded
}

// ErrorInfo extracts an error info from an error. If the error is not a gRPC
// error or does not contain an error info, it returns nil.
func ErrorInfo(err error) *errdetails.ErrorInfo {
	st := status.Convert(err)

	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			return info
		}
	}

	return nil
}

// Reason returns the machine-readable reason of a gRPC error if it carries
// one, and the status message otherwise.
func Reason(err error) string {
	if info := ErrorInfo(err); info != nil {
		return info.Reason
	}

	return status.Convert(err).Message()
}

// ErrorWithReason builds a gRPC status error carrying an ErrorInfo detail.
// If the detail cannot be attached, the plain status error is returned.
func ErrorWithReason(code codes.Code, reason, msg string) error {
	st := status.New(code, msg)

	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{
		Domain: ErrorDomain,
		Reason: reason,
	})
	if err != nil {
		return st.Err()
	}

	return withInfo.Err()
}
