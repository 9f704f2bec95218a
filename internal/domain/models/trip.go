package models

import "time"

type Route struct {
	ID          int64
	Origin      string
	Destination string
}

type Bus struct {
	ID          int64
	PlateNumber string
	Name        string
	Capacity    int
}

// Trip is a scheduled departure of a bus on a route.
type Trip struct {
	ID          int64
	DepartureAt time.Time
	BasePrice   int64
	Status      string
	Route       Route
	Bus         Bus
}
