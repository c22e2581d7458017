package tasks

import (
	"context"
	"fmt"

	"github.com/lysyi3m/badge-comb/app/bookmark"
	"github.com/lysyi3m/badge-comb/app/dom"
	"github.com/lysyi3m/badge-comb/app/lists"
)

type Source string

const (
	SourceLive   Source = "live"
	SourceRemote Source = "remote"
)

// Result is the outcome for one list in one run. NewCount is meaningful only
// when Known is true; an unknown count never reaches the badge.
type Result struct {
	List          lists.Descriptor
	Source        Source
	PreviousCount int
	NewCount      int
	Known         bool
	Err           error
}

func (r Result) Changed() bool {
	return r.Known && r.NewCount != r.PreviousCount
}

var _ TaskInterface = (*ReconcileListTask)(nil)

type ReconcileListTask struct {
	Task
	List    lists.Descriptor
	Source  Source
	Result  Result
	tab     *dom.Tab
	counter *bookmark.Counter
	fetcher ListFetcher
}

func NewReconcileListTask(list lists.Descriptor, source Source, tab *dom.Tab, counter *bookmark.Counter, fetcher ListFetcher) *ReconcileListTask {
	return &ReconcileListTask{
		Task:    NewTask(TaskTypeReconcileList, list.ID),
		List:    list,
		Source:  source,
		Result:  Result{List: list, Source: source, PreviousCount: list.DisplayedCount},
		tab:     tab,
		counter: counter,
		fetcher: fetcher,
	}
}

// Execute resolves the list's count, from the live page when the list is on
// screen and from its fetched page otherwise.
func (t *ReconcileListTask) Execute(ctx context.Context) error {
	t.State = TaskStateResolving

	count, err := t.resolve(ctx)
	if err != nil {
		t.State = TaskStateSkipped
		t.Result.Err = err
		return err
	}

	t.State = TaskStateReconciled
	t.Result.NewCount = count
	t.Result.Known = true
	return nil
}

func (t *ReconcileListTask) resolve(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	if t.Source == SourceLive {
		var count int
		if !t.tab.Read(func(doc *dom.Document) { count = t.counter.Run(doc) }) {
			return 0, dom.ErrNoDocument
		}
		return count, nil
	}

	doc, err := t.fetcher.Run(ctx, t.List.ID)
	if err != nil {
		return 0, fmt.Errorf("remote count unavailable: %w", err)
	}
	return t.counter.Run(doc), nil
}
