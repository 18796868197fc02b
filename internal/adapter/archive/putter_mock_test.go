package archive

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var _ putter = &putterMock{}

type putterMock struct {
	PutObjectFunc func(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)

	calls struct {
		PutObject []struct {
			Ctx    context.Context
			In     *s3.PutObjectInput
			OptFns []func(*s3.Options)
		}
	}
	lockPutObject sync.RWMutex
}

func (mock *putterMock) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if mock.PutObjectFunc == nil {
		panic("putterMock.PutObjectFunc: method is nil but putter.PutObject was just called")
	}
	callInfo := struct {
		Ctx    context.Context
		In     *s3.PutObjectInput
		OptFns []func(*s3.Options)
	}{Ctx: ctx, In: in, OptFns: optFns}
	mock.lockPutObject.Lock()
	mock.calls.PutObject = append(mock.calls.PutObject, callInfo)
	mock.lockPutObject.Unlock()
	return mock.PutObjectFunc(ctx, in, optFns...)
}

func (mock *putterMock) PutObjectCalls() []struct {
	Ctx    context.Context
	In     *s3.PutObjectInput
	OptFns []func(*s3.Options)
} {
	mock.lockPutObject.RLock()
	calls := mock.calls.PutObject
	mock.lockPutObject.RUnlock()
	return calls
}
