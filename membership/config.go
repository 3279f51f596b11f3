package membership

import (
	"time"

	kitlog "github.com/go-kit/log"

	"github.com/maxpoletaev/shardcoord/nodeapi"
)

type Config struct {
	NodeID      NodeID
	NodeName    string
	Addr        string
	Dialer      nodeapi.Dialer
	Logger      kitlog.Logger
	DialTimeout time.Duration
	GCInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Logger:      kitlog.NewNopLogger(),
		DialTimeout: 6 * time.Second,
		GCInterval:  30 * time.Second,
	}
}
