// Package inmem provides mutex-guarded in-memory implementations of the
// backend collaborator interfaces, for tests and local development.
package inmem

import (
	"sync"

	"github.com/kwetu-lab/elimu/core/track"
	"github.com/kwetu-lab/elimu/core/training"
)

type (
	DB struct {
		content *contentTables
		logbook *logTables
	}

	contentTables struct {
		sync.RWMutex
		sections      map[string]*training.Section
		overlays      map[string]*training.Overlay
		frameConfigs  map[string]*training.FrameConfig
		globalConfigs map[string]*training.GlobalFrameConfig
	}

	logTables struct {
		sync.RWMutex
		events   []track.InteractionEvent
		chats    []track.ChatMessage
		progress map[string]track.Progress // by session ID
	}
)

func Open() *DB {
	db := &DB{
		content: &contentTables{
			sections:      make(map[string]*training.Section),
			overlays:      make(map[string]*training.Overlay),
			frameConfigs:  make(map[string]*training.FrameConfig),
			globalConfigs: make(map[string]*training.GlobalFrameConfig),
		},
		logbook: &logTables{
			progress: make(map[string]track.Progress),
		},
	}
	return db
}
