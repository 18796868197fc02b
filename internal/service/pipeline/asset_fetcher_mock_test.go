package pipeline

import (
	"context"
	"sync"
)

var _ assetFetcher = &assetFetcherMock{}

type assetFetcherMock struct {
	FetchFunc func(ctx context.Context, rawURL string) ([]byte, error)

	calls struct {
		Fetch []struct {
			Ctx    context.Context
			RawURL string
		}
	}
	lockFetch sync.RWMutex
}

func (mock *assetFetcherMock) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if mock.FetchFunc == nil {
		panic("assetFetcherMock.FetchFunc: method is nil but assetFetcher.Fetch was just called")
	}
	callInfo := struct {
		Ctx    context.Context
		RawURL string
	}{Ctx: ctx, RawURL: rawURL}
	mock.lockFetch.Lock()
	mock.calls.Fetch = append(mock.calls.Fetch, callInfo)
	mock.lockFetch.Unlock()
	return mock.FetchFunc(ctx, rawURL)
}

func (mock *assetFetcherMock) FetchCalls() []struct {
	Ctx    context.Context
	RawURL string
} {
	mock.lockFetch.RLock()
	calls := mock.calls.Fetch
	mock.lockFetch.RUnlock()
	return calls
}
