package redis

import "context"

// DirectoryInterface defines the driver registry operations.
type DirectoryInterface interface {
	SetAvailable(ctx context.Context, driverID string, available bool) error
	UpdatePosition(ctx context.Context, driverID string, lat, lng float64) error
	ListAvailable(ctx context.Context) ([]string, error)
	GetPosition(ctx context.Context, driverID string) (*DriverPosition, error)
	Remove(ctx context.Context, driverID string) error
}

// Ensure concrete types implement interfaces.
var _ DirectoryInterface = (*Directory)(nil)
