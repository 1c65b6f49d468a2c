package mocks

import (
	"context"

	"github.com/joshu-sajeev/coursenotify/internal/delivery"
	"github.com/stretchr/testify/mock"
)

type DelivererMock struct {
	mock.Mock
}

func (m *DelivererMock) Deliver(ctx context.Context, n delivery.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
