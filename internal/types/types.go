// README: Common value objects shared across modules.
package types

// ID is an opaque document identifier.
type ID string

// Money is an amount in the smallest currency unit.
type Money struct {
	Amount   int64
	Currency string
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}
