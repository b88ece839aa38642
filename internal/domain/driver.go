package domain

// Vehicle describes a driver's car. Opaque to the ride core; carried
// through so acceptance events can show it to the rider.
type Vehicle struct {
	Model        string
	LicensePlate string
	Color        string
}

// Driver is a driver profile. Provisioning is external; this core only
// reads profiles when enriching acceptance events.
type Driver struct {
	ID      string
	Name    string
	Phone   string
	Vehicle Vehicle
}
