package main

import (
	"fmt"
	"strings"
	"time"
)

var opts struct {
	Node struct {
		ID     string `long:"id" env:"ID" required:"true" description:"unique node id"`
		Name   string `long:"name" env:"NAME" description:"node name"`
		Leader bool   `long:"leader" env:"LEADER" description:"publish the cluster state from this node"`
	} `group:"node" namespace:"node" env-namespace:"NODE"`

	GRPC struct {
		BindAddr   string `long:"bind-addr" description:"address to bind grpc server" env:"BIND_ADDR" default:":3000"`
		PublicAddr string `long:"public-addr" description:"address to advertise to other nodes" env:"PUBLIC_ADDR" required:"true"`
	} `group:"grpc" namespace:"grpc" env-namespace:"GRPC"`

	API struct {
		Enabled     bool          `long:"enabled" description:"enable admin API" env:"ENABLED"`
		BindAddr    string        `long:"bind-addr" description:"address to bind admin API server" env:"BIND_ADDR" default:":8000"`
		TaskTimeout time.Duration `long:"task-timeout" description:"how long API tasks may wait in the queue" env:"TASK_TIMEOUT" default:"30s"`
	} `group:"api" namespace:"api" env-namespace:"API"`

	Cluster struct {
		Name        string `long:"name" description:"cluster name, used as the cluster uuid" env:"NAME" default:"shardcoord"`
		Nodes       string `long:"nodes" description:"comma-separated list of static nodes as id=addr" env:"NODES"`
		GossipAddr  string `long:"gossip-bind-addr" description:"address to bind gossip listener" env:"GOSSIP_BIND_ADDR" default:"0.0.0.0"`
		GossipPort  int    `long:"gossip-bind-port" description:"port to bind gossip listener, 0 disables discovery" env:"GOSSIP_BIND_PORT" default:"0"`
		JoinAddrs   string `long:"join-addrs" description:"comma-separated list of gossip addresses to join" env:"JOIN_ADDRS"`
		IndicesFile string `long:"indices-file" description:"YAML file with the indices to create on start" env:"INDICES_FILE"`
	} `group:"cluster" namespace:"cluster" env-namespace:"CLUSTER"`

	Publish struct {
		Timeout time.Duration `long:"timeout" description:"publication timeout" env:"TIMEOUT" default:"30s"`
		Quorum  string        `long:"quorum" description:"commit policy: self or majority" env:"QUORUM" default:"self" choice:"self" choice:"majority"`
	} `group:"publish" namespace:"publish" env-namespace:"PUBLISH"`

	Verbose bool `long:"verbose" description:"verbose mode" env:"VERBOSE"`
}

func parseAddrs(addrs string) []string {
	sl := strings.Split(addrs, ",")
	res := make([]string, 0, len(sl))

	for _, addr := range sl {
		trimmed := strings.TrimSpace(addr)
		if trimmed != "" {
			res = append(res, trimmed)
		}
	}

	return res
}

// parseNodes parses a list of id=addr pairs.
func parseNodes(s string) (map[string]string, error) {
	nodes := make(map[string]string)

	for _, pair := range parseAddrs(s) {
		id, addr, ok := strings.Cut(pair, "=")
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid node %q, expected id=addr", pair)
		}

		nodes[id] = addr
	}

	return nodes, nil
}
