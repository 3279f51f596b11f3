package coordination

import (
	"fmt"
	"strings"
)

// Priority of a state update task. Tasks with a higher priority are drained
// first, tasks of the same priority in submission order.
type Priority int

const (
	PriorityLanguid Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityUrgent
	PriorityImmediate
)

var priorityNames = map[Priority]string{
	PriorityLanguid:   "LANGUID",
	PriorityLow:       "LOW",
	PriorityNormal:    "NORMAL",
	PriorityHigh:      "HIGH",
	PriorityUrgent:    "URGENT",
	PriorityImmediate: "IMMEDIATE",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}

	return fmt.Sprintf("Priority(%d)", int(p))
}

func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}

	return 0, fmt.Errorf("unknown priority: %q", s)
}
