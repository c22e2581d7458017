package api

import (
	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/store"
	"github.com/lysyi3m/badge-comb/app/tasks"
)

// ActionRefreshCounts asks for a reconciliation run, subject to the cooldown.
const ActionRefreshCounts = "refreshCounts"

// Message is the body of POST /api/messages.
type Message struct {
	Action string `json:"action"`
}

// PageView is the read side of the live tab shown by /view.
type PageView interface {
	HTML() (string, error)
}

var _ PageView = (*dom.Tab)(nil)

type Handler struct {
	scheduler tasks.TaskSchedulerInterface
	repo      store.Repository
	page      PageView
	version   string
}
