// Package events implements the broadcast event sink described in §9:
// a write-once slot set at startup, with each subscriber receiving events
// on its own bounded channel. Slow subscribers may drop events rather than
// block the state manager.
package events

import (
	"github.com/google/uuid"
	"github.com/hazechain/haze/internal/chaintypes"
)

type Type string

const (
	AssetCreated           Type = "asset_created"
	AssetUpdated           Type = "asset_updated"
	AssetCondensed         Type = "asset_condensed"
	AssetEvaporated        Type = "asset_evaporated"
	AssetMerged            Type = "asset_merged"
	AssetSplit             Type = "asset_split"
	AssetPermissionChanged Type = "asset_permission_changed"
)

// Event carries the minimal identifiers of the entities a mutation
// affected; no full state snapshot is broadcast.
type Event struct {
	Type    Type
	AssetID chaintypes.Hash
	Other   chaintypes.Hash   // set for Merge (other asset) and Split (source)
	Extra   []chaintypes.Hash // e.g. component asset ids created by Split
}

const defaultChannelDepth = 256

// Sink is a bounded fan-out broadcaster. It needs no start step and Emit
// works with zero subscribers, so the state manager can hold an optional
// handle.
type Sink struct {
	subs map[string]chan Event
}

func NewSink() *Sink {
	return &Sink{subs: make(map[string]chan Event)}
}

// Subscribe returns a new bounded channel and an id for Unsubscribe.
func (s *Sink) Subscribe() (string, <-chan Event) {
	id := uuid.NewString()
	ch := make(chan Event, defaultChannelDepth)
	s.subs[id] = ch
	return id, ch
}

func (s *Sink) Unsubscribe(id string) {
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// Emit fans out ev to every subscriber, dropping it for any subscriber
// whose channel is full rather than blocking the caller.
func (s *Sink) Emit(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
