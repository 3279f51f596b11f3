package clusterstate

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/maxpoletaev/shardcoord/internal/protoio"
)

// Field numbers of the binary state encoding. Maps are written in key order,
// so equal states always produce identical bytes.
const (
	fieldStateVersion  protowire.Number = 1
	fieldStateUUID     protowire.Number = 2
	fieldStateMetadata protowire.Number = 3
	fieldStateRouting  protowire.Number = 4

	fieldMetaIndex   protowire.Number = 1
	fieldMetaSetting protowire.Number = 2

	fieldSettingKey   protowire.Number = 1
	fieldSettingValue protowire.Number = 2

	fieldIndexName     protowire.Number = 1
	fieldIndexShards   protowire.Number = 2
	fieldIndexReplicas protowire.Number = 3
	fieldIndexState    protowire.Number = 4
	fieldIndexSetting  protowire.Number = 5

	fieldRoutingIndex protowire.Number = 1

	fieldIndexRoutingName  protowire.Number = 1
	fieldIndexRoutingShard protowire.Number = 2

	fieldShardTableNumber protowire.Number = 1
	fieldShardTableCopy   protowire.Number = 2

	fieldCopyIndex        protowire.Number = 1
	fieldCopyShard        protowire.Number = 2
	fieldCopyNode         protowire.Number = 3
	fieldCopyRelocating   protowire.Number = 4
	fieldCopyPrimary      protowire.Number = 5
	fieldCopyState        protowire.Number = 6
	fieldCopyAllocationID protowire.Number = 7
)

// Marshal encodes the state into protobuf wire format.
func Marshal(s *State) ([]byte, error) {
	b := protoio.AppendUint(nil, fieldStateVersion, s.Version)
	return appendContent(b, s), nil
}

func appendContent(b []byte, s *State) []byte {
	b = protoio.AppendString(b, fieldStateUUID, s.ClusterUUID)

	b = protoio.AppendMessage(b, fieldStateMetadata, func(b []byte) []byte {
		return appendMetadata(b, &s.Metadata)
	})

	b = protoio.AppendMessage(b, fieldStateRouting, func(b []byte) []byte {
		return appendRouting(b, &s.Routing)
	})

	return b
}

func appendSettings(b []byte, num protowire.Number, settings map[string]string) []byte {
	keys := maps.Keys(settings)
	slices.Sort(keys)

	for _, k := range keys {
		b = protoio.AppendMessage(b, num, func(b []byte) []byte {
			b = protoio.AppendString(b, fieldSettingKey, k)
			return protoio.AppendString(b, fieldSettingValue, settings[k])
		})
	}

	return b
}

func appendMetadata(b []byte, m *Metadata) []byte {
	names := maps.Keys(m.Indices)
	slices.Sort(names)

	for _, name := range names {
		meta := m.Indices[name]

		b = protoio.AppendMessage(b, fieldMetaIndex, func(b []byte) []byte {
			b = protoio.AppendString(b, fieldIndexName, meta.Name)
			b = protoio.AppendUint(b, fieldIndexShards, uint64(meta.NumberOfShards))
			b = protoio.AppendUint(b, fieldIndexReplicas, uint64(meta.NumberOfReplicas))
			b = protoio.AppendUint(b, fieldIndexState, uint64(meta.State))
			return appendSettings(b, fieldIndexSetting, meta.Settings)
		})
	}

	return appendSettings(b, fieldMetaSetting, m.Settings)
}

func appendRouting(b []byte, r *RoutingTable) []byte {
	names := maps.Keys(r.Indices)
	slices.Sort(names)

	for _, name := range names {
		table := r.Indices[name]

		b = protoio.AppendMessage(b, fieldRoutingIndex, func(b []byte) []byte {
			b = protoio.AppendString(b, fieldIndexRoutingName, table.Index)

			shards := maps.Keys(table.Shards)
			slices.Sort(shards)

			for _, shard := range shards {
				b = protoio.AppendMessage(b, fieldIndexRoutingShard, func(b []byte) []byte {
					b = protoio.AppendUint(b, fieldShardTableNumber, uint64(shard))

					for i := range table.Shards[shard] {
						sr := &table.Shards[shard][i]
						b = protoio.AppendMessage(b, fieldShardTableCopy, func(b []byte) []byte {
							return appendShardRouting(b, sr)
						})
					}

					return b
				})
			}

			return b
		})
	}

	return b
}

func appendShardRouting(b []byte, sr *ShardRouting) []byte {
	b = protoio.AppendString(b, fieldCopyIndex, sr.Index)
	b = protoio.AppendUint(b, fieldCopyShard, uint64(sr.Shard))
	b = protoio.AppendString(b, fieldCopyNode, sr.NodeID)
	b = protoio.AppendString(b, fieldCopyRelocating, sr.RelocatingNodeID)
	b = protoio.AppendBool(b, fieldCopyPrimary, sr.Primary)
	b = protoio.AppendUint(b, fieldCopyState, uint64(sr.State))
	b = protoio.AppendString(b, fieldCopyAllocationID, sr.AllocationID)

	return b
}

// Unmarshal decodes a state previously encoded with Marshal.
func Unmarshal(data []byte) (*State, error) {
	s := Empty("")

	err := protoio.Walk(data, func(f protoio.Field) (err error) {
		switch f.Num {
		case fieldStateVersion:
			s.Version, err = f.Uint64()
		case fieldStateUUID:
			s.ClusterUUID, err = f.String()
		case fieldStateMetadata:
			var msg []byte
			if msg, err = f.Message(); err == nil {
				err = decodeMetadata(msg, &s.Metadata)
			}
		case fieldStateRouting:
			var msg []byte
			if msg, err = f.Message(); err == nil {
				err = decodeRouting(msg, &s.Routing)
			}
		}

		return err
	})

	if err != nil {
		return nil, fmt.Errorf("decode cluster state: %w", err)
	}

	return s, nil
}

func decodeSetting(msg []byte, into map[string]string) error {
	var key, value string

	err := protoio.Walk(msg, func(f protoio.Field) (err error) {
		switch f.Num {
		case fieldSettingKey:
			key, err = f.String()
		case fieldSettingValue:
			value, err = f.String()
		}

		return err
	})

	if err != nil {
		return err
	}

	into[key] = value

	return nil
}

func decodeMetadata(data []byte, m *Metadata) error {
	return protoio.Walk(data, func(f protoio.Field) error {
		if f.Num != fieldMetaIndex && f.Num != fieldMetaSetting {
			return nil
		}

		msg, err := f.Message()
		if err != nil {
			return err
		}

		if f.Num == fieldMetaSetting {
			return decodeSetting(msg, m.Settings)
		}

		meta, err := decodeIndexMetadata(msg)
		if err != nil {
			return err
		}

		m.Indices[meta.Name] = meta

		return nil
	})
}

func decodeIndexMetadata(data []byte) (IndexMetadata, error) {
	meta := IndexMetadata{Settings: make(map[string]string)}

	err := protoio.Walk(data, func(f protoio.Field) (err error) {
		switch f.Num {
		case fieldIndexName:
			meta.Name, err = f.String()
		case fieldIndexShards:
			meta.NumberOfShards, err = f.Int()
		case fieldIndexReplicas:
			meta.NumberOfReplicas, err = f.Int()
		case fieldIndexState:
			var v uint64
			v, err = f.Uint64()
			meta.State = IndexState(v)
		case fieldIndexSetting:
			var msg []byte
			if msg, err = f.Message(); err == nil {
				err = decodeSetting(msg, meta.Settings)
			}
		}

		return err
	})

	return meta, err
}

func decodeRouting(data []byte, r *RoutingTable) error {
	return protoio.Walk(data, func(f protoio.Field) error {
		if f.Num != fieldRoutingIndex {
			return nil
		}

		msg, err := f.Message()
		if err != nil {
			return err
		}

		table := IndexRoutingTable{Shards: make(map[int][]ShardRouting)}

		err = protoio.Walk(msg, func(f protoio.Field) (err error) {
			switch f.Num {
			case fieldIndexRoutingName:
				table.Index, err = f.String()
			case fieldIndexRoutingShard:
				var msg []byte
				if msg, err = f.Message(); err == nil {
					err = decodeShardTable(msg, table.Shards)
				}
			}

			return err
		})

		if err != nil {
			return err
		}

		r.Indices[table.Index] = table

		return nil
	})
}

func decodeShardTable(data []byte, into map[int][]ShardRouting) error {
	var (
		shard  int
		copies = make([]ShardRouting, 0)
	)

	err := protoio.Walk(data, func(f protoio.Field) (err error) {
		switch f.Num {
		case fieldShardTableNumber:
			shard, err = f.Int()
		case fieldShardTableCopy:
			var msg []byte
			if msg, err = f.Message(); err == nil {
				var sr ShardRouting
				if sr, err = decodeShardRouting(msg); err == nil {
					copies = append(copies, sr)
				}
			}
		}

		return err
	})

	if err != nil {
		return err
	}

	into[shard] = copies

	return nil
}

func decodeShardRouting(data []byte) (ShardRouting, error) {
	var sr ShardRouting

	err := protoio.Walk(data, func(f protoio.Field) (err error) {
		switch f.Num {
		case fieldCopyIndex:
			sr.Index, err = f.String()
		case fieldCopyShard:
			sr.Shard, err = f.Int()
		case fieldCopyNode:
			sr.NodeID, err = f.String()
		case fieldCopyRelocating:
			sr.RelocatingNodeID, err = f.String()
		case fieldCopyPrimary:
			sr.Primary, err = f.Bool()
		case fieldCopyState:
			var v uint64
			v, err = f.Uint64()
			sr.State = ShardState(v)
		case fieldCopyAllocationID:
			sr.AllocationID, err = f.String()
		}

		return err
	})

	return sr, err
}
