package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fable-server/internal/messaging"
	"fable-server/internal/models"
)

// MockTaskDispatcher is a testify mock for messaging.TaskDispatcher.
type MockTaskDispatcher struct {
	mock.Mock
}

var _ messaging.TaskDispatcher = (*MockTaskDispatcher)(nil)

func (m *MockTaskDispatcher) Dispatch(ctx context.Context, payload messaging.GenerationTaskPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

func (m *MockTaskDispatcher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEventPublisher is a testify mock for messaging.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

var _ messaging.EventPublisher = (*MockEventPublisher)(nil)

func (m *MockEventPublisher) PublishEvent(ctx context.Context, event models.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
