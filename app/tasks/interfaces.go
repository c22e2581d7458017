package tasks

import (
	"context"

	"github.com/lysyi3m/badge-comb/app/dom"
)

// ListFetcher loads the page of a list that is not currently on screen.
// Implemented by lists.Fetcher.
type ListFetcher interface {
	Run(ctx context.Context, listID string) (*dom.Document, error)
}

// TaskSchedulerInterface is what the main application and the API see of the
// scheduler. Every trigger goes through Request.
//
//	scheduler := NewScheduler(tab, adapter, scanner, counter, fetcher, repo, reloadInterval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.Request(TriggerManual)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	Request(trigger Trigger) error
	Status() Status
}
