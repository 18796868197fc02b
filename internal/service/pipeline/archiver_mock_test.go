package pipeline

import (
	"context"
	"sync"
)

var _ archiver = &archiverMock{}

type archiverMock struct {
	ArchiveFunc func(ctx context.Context, brandID string, eventID string, filePath string) (string, error)

	calls struct {
		Archive []struct {
			Ctx      context.Context
			BrandID  string
			EventID  string
			FilePath string
		}
	}
	lockArchive sync.RWMutex
}

func (mock *archiverMock) Archive(ctx context.Context, brandID string, eventID string, filePath string) (string, error) {
	if mock.ArchiveFunc == nil {
		panic("archiverMock.ArchiveFunc: method is nil but archiver.Archive was just called")
	}
	callInfo := struct {
		Ctx      context.Context
		BrandID  string
		EventID  string
		FilePath string
	}{Ctx: ctx, BrandID: brandID, EventID: eventID, FilePath: filePath}
	mock.lockArchive.Lock()
	mock.calls.Archive = append(mock.calls.Archive, callInfo)
	mock.lockArchive.Unlock()
	return mock.ArchiveFunc(ctx, brandID, eventID, filePath)
}

func (mock *archiverMock) ArchiveCalls() []struct {
	Ctx      context.Context
	BrandID  string
	EventID  string
	FilePath string
} {
	mock.lockArchive.RLock()
	calls := mock.calls.Archive
	mock.lockArchive.RUnlock()
	return calls
}
