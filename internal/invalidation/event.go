// Package invalidation defines dataset change events published on Kafka.
package invalidation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	OpReload = "reload"
	OpEvict  = "evict"
)

type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Dataset string    `json:"dataset"`
	TS      time.Time `json:"ts"`
	Source  string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return errors.New("version must be 1")
	}
	switch e.Op {
	case OpReload, OpEvict:
	default:
		return fmt.Errorf("op must be %s|%s", OpReload, OpEvict)
	}
	if strings.TrimSpace(e.Dataset) == "" {
		return errors.New("dataset is required")
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	return nil
}
