package store

type Repository interface {
	RecordRun(run Run, counts []ListCount) error

	GetRunCount() (int, error)
	GetRecentRuns(limit int) ([]Run, error)
	GetListCounts() ([]ListCount, error)
}
