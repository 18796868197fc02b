package pipeline

import (
	"context"
	"sync"

	"github.com/heartmarshall/brandkit/internal/domain"
)

var _ customerStore = &customerStoreMock{}

type customerStoreMock struct {
	FindByEmailFunc   func(ctx context.Context, email string) (*domain.Customer, error)
	UpsertFunc        func(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	MarkEmailSentFunc func(ctx context.Context, brandID string) error
	ListPendingFunc   func(ctx context.Context, limit int) ([]domain.Customer, error)

	calls struct {
		FindByEmail []struct {
			Ctx   context.Context
			Email string
		}
		Upsert []struct {
			Ctx context.Context
			C   *domain.Customer
		}
		MarkEmailSent []struct {
			Ctx     context.Context
			BrandID string
		}
		ListPending []struct {
			Ctx   context.Context
			Limit int
		}
	}
	lockFindByEmail   sync.RWMutex
	lockUpsert        sync.RWMutex
	lockMarkEmailSent sync.RWMutex
	lockListPending   sync.RWMutex
}

func (mock *customerStoreMock) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	if mock.FindByEmailFunc == nil {
		panic("customerStoreMock.FindByEmailFunc: method is nil but customerStore.FindByEmail was just called")
	}
	callInfo := struct {
		Ctx   context.Context
		Email string
	}{Ctx: ctx, Email: email}
	mock.lockFindByEmail.Lock()
	mock.calls.FindByEmail = append(mock.calls.FindByEmail, callInfo)
	mock.lockFindByEmail.Unlock()
	return mock.FindByEmailFunc(ctx, email)
}

func (mock *customerStoreMock) FindByEmailCalls() []struct {
	Ctx   context.Context
	Email string
} {
	mock.lockFindByEmail.RLock()
	calls := mock.calls.FindByEmail
	mock.lockFindByEmail.RUnlock()
	return calls
}

func (mock *customerStoreMock) Upsert(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	if mock.UpsertFunc == nil {
		panic("customerStoreMock.UpsertFunc: method is nil but customerStore.Upsert was just called")
	}
	callInfo := struct {
		Ctx context.Context
		C   *domain.Customer
	}{Ctx: ctx, C: c}
	mock.lockUpsert.Lock()
	mock.calls.Upsert = append(mock.calls.Upsert, callInfo)
	mock.lockUpsert.Unlock()
	return mock.UpsertFunc(ctx, c)
}

func (mock *customerStoreMock) UpsertCalls() []struct {
	Ctx context.Context
	C   *domain.Customer
} {
	mock.lockUpsert.RLock()
	calls := mock.calls.Upsert
	mock.lockUpsert.RUnlock()
	return calls
}

func (mock *customerStoreMock) MarkEmailSent(ctx context.Context, brandID string) error {
	if mock.MarkEmailSentFunc == nil {
		panic("customerStoreMock.MarkEmailSentFunc: method is nil but customerStore.MarkEmailSent was just called")
	}
	callInfo := struct {
		Ctx     context.Context
		BrandID string
	}{Ctx: ctx, BrandID: brandID}
	mock.lockMarkEmailSent.Lock()
	mock.calls.MarkEmailSent = append(mock.calls.MarkEmailSent, callInfo)
	mock.lockMarkEmailSent.Unlock()
	return mock.MarkEmailSentFunc(ctx, brandID)
}

func (mock *customerStoreMock) MarkEmailSentCalls() []struct {
	Ctx     context.Context
	BrandID string
} {
	mock.lockMarkEmailSent.RLock()
	calls := mock.calls.MarkEmailSent
	mock.lockMarkEmailSent.RUnlock()
	return calls
}

func (mock *customerStoreMock) ListPending(ctx context.Context, limit int) ([]domain.Customer, error) {
	if mock.ListPendingFunc == nil {
		panic("customerStoreMock.ListPendingFunc: method is nil but customerStore.ListPending was just called")
	}
	callInfo := struct {
		Ctx   context.Context
		Limit int
	}{Ctx: ctx, Limit: limit}
	mock.lockListPending.Lock()
	mock.calls.ListPending = append(mock.calls.ListPending, callInfo)
	mock.lockListPending.Unlock()
	return mock.ListPendingFunc(ctx, limit)
}

func (mock *customerStoreMock) ListPendingCalls() []struct {
	Ctx   context.Context
	Limit int
} {
	mock.lockListPending.RLock()
	calls := mock.calls.ListPending
	mock.lockListPending.RUnlock()
	return calls
}
