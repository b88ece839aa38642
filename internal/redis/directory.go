package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	availableDriversKey = "drivers:available"
	driverPositionsKey  = "drivers:positions"
)

// DriverPosition is a driver's last known position. No history is kept;
// writes are last-write-wins.
type DriverPosition struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// Directory is the live registry of driver availability and position,
// backed by a Redis set plus a GEO index.
type Directory struct {
	client *redis.Client
}

// NewDirectory creates a new Directory.
func NewDirectory(client *redis.Client) *Directory {
	return &Directory{client: client}
}

// SetAvailable flips a driver's availability flag.
func (d *Directory) SetAvailable(ctx context.Context, driverID string, available bool) error {
	if available {
		return d.client.SAdd(ctx, availableDriversKey, driverID).Err()
	}
	return d.client.SRem(ctx, availableDriversKey, driverID).Err()
}

// UpdatePosition stores a driver's position using GEOADD.
func (d *Directory) UpdatePosition(ctx context.Context, driverID string, lat, lng float64) error {
	return d.client.GeoAdd(ctx, driverPositionsKey, &redis.GeoLocation{
		Name:      driverID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// ListAvailable returns the ids of all drivers currently flagged available.
func (d *Directory) ListAvailable(ctx context.Context) ([]string, error) {
	return d.client.SMembers(ctx, availableDriversKey).Result()
}

// GetPosition returns a driver's last known position, or nil if the
// driver has never reported one.
func (d *Directory) GetPosition(ctx context.Context, driverID string) (*DriverPosition, error) {
	positions, err := d.client.GeoPos(ctx, driverPositionsKey, driverID).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}
	return &DriverPosition{
		DriverID: driverID,
		Lat:      positions[0].Latitude,
		Lng:      positions[0].Longitude,
	}, nil
}

// Remove drops a driver from both the availability set and the GEO index.
func (d *Directory) Remove(ctx context.Context, driverID string) error {
	if err := d.client.SRem(ctx, availableDriversKey, driverID).Err(); err != nil {
		return err
	}
	return d.client.ZRem(ctx, driverPositionsKey, driverID).Err()
}
