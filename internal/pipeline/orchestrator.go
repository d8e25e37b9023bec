package pipeline

import (
	"github.com/example/scribevault/internal/botadapter"
	"github.com/example/scribevault/internal/processors"
	"github.com/example/scribevault/internal/store"
	"github.com/example/scribevault/internal/vault"
)

// Orchestrator wires together the metadata store, storage vault, bot
// provider adapter, and processor adapters behind the state machine and
// revision operations of component F.
type Orchestrator struct {
	store       *store.Store
	vault       *vault.Vault
	bot         *botadapter.PollingClient
	transcriber *processors.Transcriber
	summarizer  *processors.Summarizer
	locks       *meetingLocks
}

// New constructs an Orchestrator from its collaborators.
func New(st *store.Store, v *vault.Vault, bot *botadapter.PollingClient, transcriber *processors.Transcriber, summarizer *processors.Summarizer) *Orchestrator {
	return &Orchestrator{
		store:       st,
		vault:       v,
		bot:         bot,
		transcriber: transcriber,
		summarizer:  summarizer,
		locks:       newMeetingLocks(),
	}
}
