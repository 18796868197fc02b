package pipeline

import (
	"context"
	"sync"

	"github.com/heartmarshall/brandkit/internal/notify"
)

var _ delivery = &deliveryMock{}

type deliveryMock struct {
	SendFunc func(ctx context.Context, msg notify.Message) error

	calls struct {
		Send []struct {
			Ctx context.Context
			Msg notify.Message
		}
	}
	lockSend sync.RWMutex
}

func (mock *deliveryMock) Send(ctx context.Context, msg notify.Message) error {
	if mock.SendFunc == nil {
		panic("deliveryMock.SendFunc: method is nil but delivery.Send was just called")
	}
	callInfo := struct {
		Ctx context.Context
		Msg notify.Message
	}{Ctx: ctx, Msg: msg}
	mock.lockSend.Lock()
	mock.calls.Send = append(mock.calls.Send, callInfo)
	mock.lockSend.Unlock()
	return mock.SendFunc(ctx, msg)
}

func (mock *deliveryMock) SendCalls() []struct {
	Ctx context.Context
	Msg notify.Message
} {
	mock.lockSend.RLock()
	calls := mock.calls.Send
	mock.lockSend.RUnlock()
	return calls
}
