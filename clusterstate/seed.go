package clusterstate

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

var (
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexExists   = errors.New("index already exists")
	ErrInvalidIndex  = errors.New("invalid index definition")
)

type seedFile struct {
	Indices []seedIndex `yaml:"indices"`
}

type seedIndex struct {
	Name     string            `yaml:"name"`
	Shards   int               `yaml:"shards"`
	Replicas int               `yaml:"replicas"`
	Closed   bool              `yaml:"closed"`
	Settings map[string]string `yaml:"settings"`
}

// ValidateIndex checks that the index definition can be put into the state.
func ValidateIndex(meta IndexMetadata) error {
	switch {
	case meta.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidIndex)
	case meta.NumberOfShards < 1:
		return fmt.Errorf("%w: %s: number of shards must be positive", ErrInvalidIndex, meta.Name)
	case meta.NumberOfReplicas < 0:
		return fmt.Errorf("%w: %s: number of replicas must not be negative", ErrInvalidIndex, meta.Name)
	}

	return nil
}

// LoadSeed reads the list of indices the cluster is bootstrapped with:
//
//	indices:
//	  - name: logs
//	    shards: 3
//	    replicas: 1
//	    settings:
//	      refresh_interval: 1s
func LoadSeed(r io.Reader) ([]IndexMetadata, error) {
	var file seedFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(file.Indices))
	indices := make([]IndexMetadata, 0, len(file.Indices))

	for _, idx := range file.Indices {
		meta := IndexMetadata{
			Name:             idx.Name,
			NumberOfShards:   idx.Shards,
			NumberOfReplicas: idx.Replicas,
			State:            IndexOpen,
			Settings:         idx.Settings,
		}

		if idx.Closed {
			meta.State = IndexClosed
		}

		if err := ValidateIndex(meta); err != nil {
			return nil, err
		}

		if seen[meta.Name] {
			return nil, fmt.Errorf("%w: duplicate index %s", ErrInvalidIndex, meta.Name)
		}

		seen[meta.Name] = true
		indices = append(indices, meta)
	}

	return indices, nil
}
