package model

import "time"

type Node struct {
	ID     string `json:"ID"`
	Name   string `json:"Name"`
	Addr   string `json:"Addr"`
	Status string `json:"Status"`
}

type GetNodesResponse struct {
	Nodes []Node `json:"Nodes"`
}

type ShardCopy struct {
	NodeID           string `json:"NodeID,omitempty"`
	RelocatingNodeID string `json:"RelocatingNodeID,omitempty"`
	Primary          bool   `json:"Primary"`
	State            string `json:"State"`
	AllocationID     string `json:"AllocationID,omitempty"`
}

type Shard struct {
	Shard  int         `json:"Shard"`
	Copies []ShardCopy `json:"Copies"`
}

type Index struct {
	Name     string            `json:"Name"`
	Shards   int               `json:"Shards"`
	Replicas int               `json:"Replicas"`
	State    string            `json:"State"`
	Settings map[string]string `json:"Settings,omitempty"`
	Routing  []Shard           `json:"Routing"`
}

type GetStateResponse struct {
	Version     uint64            `json:"Version"`
	ClusterUUID string            `json:"ClusterUUID"`
	Settings    map[string]string `json:"Settings,omitempty"`
	Indices     []Index           `json:"Indices"`
}

type PendingTask struct {
	Source      string    `json:"Source"`
	Priority    string    `json:"Priority"`
	InsertedAt  time.Time `json:"InsertedAt"`
	TimeInQueue string    `json:"TimeInQueue"`
}

type GetTasksResponse struct {
	Tasks []PendingTask `json:"Tasks"`
}

type ShardTarget struct {
	NodeID       string `json:"NodeID,omitempty"`
	Index        string `json:"Index"`
	Shard        int    `json:"Shard"`
	ClusterAlias string `json:"ClusterAlias,omitempty"`
	FullName     string `json:"FullName"`
}

type ShardGroup struct {
	Index   string        `json:"Index"`
	Shard   int           `json:"Shard"`
	Targets []ShardTarget `json:"Targets"`
}

type SearchShardsResponse struct {
	Version                  uint64       `json:"Version"`
	Size                     int          `json:"Size"`
	TotalSizeWithOneForEmpty int          `json:"TotalSizeWithOneForEmpty"`
	Groups                   []ShardGroup `json:"Groups"`
}
