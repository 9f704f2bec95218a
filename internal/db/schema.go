package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Index names the repositories inspect when MySQL reports error 1062.
const (
	IndexTripSeat         = "uniq_trip_seat"
	IndexBookingReference = "uniq_booking_reference"
	IndexBookingPaymentID = "uniq_booking_payment"
	IndexLoyaltyBooking   = "uniq_loyalty_booking"
)

type schemaTable struct {
	name string
	ddl  string
}

var schema = []schemaTable{
	{"routes", `
CREATE TABLE IF NOT EXISTS routes (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	origin VARCHAR(120) NOT NULL,
	destination VARCHAR(120) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"buses", `
CREATE TABLE IF NOT EXISTS buses (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	plate_number VARCHAR(32) NOT NULL,
	name VARCHAR(120) NOT NULL DEFAULT '',
	capacity INT NOT NULL DEFAULT 0
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"trips", `
CREATE TABLE IF NOT EXISTS trips (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	route_id BIGINT NOT NULL,
	bus_id BIGINT NOT NULL,
	departure_at DATETIME NOT NULL,
	base_price BIGINT NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'SCHEDULED',
	KEY idx_trip_route (route_id),
	CONSTRAINT fk_trip_route FOREIGN KEY (route_id) REFERENCES routes(id),
	CONSTRAINT fk_trip_bus FOREIGN KEY (bus_id) REFERENCES buses(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	reference VARCHAR(16) NOT NULL,
	trip_id BIGINT NOT NULL,
	base_price BIGINT NOT NULL,
	fee BIGINT NOT NULL DEFAULT 0,
	total_price BIGINT NOT NULL,
	status VARCHAR(16) NOT NULL,
	payment_method VARCHAR(16) NOT NULL,
	payment_id VARCHAR(64) NULL,
	contact_phone VARCHAR(32) NOT NULL DEFAULT '',
	contact_email VARCHAR(255) NOT NULL DEFAULT '',
	boarded_at DATETIME NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_booking_reference (reference),
	UNIQUE KEY uniq_booking_payment (payment_id),
	KEY idx_booking_status_created (status, created_at),
	CONSTRAINT fk_booking_trip FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE RESTRICT
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"passengers", `
CREATE TABLE IF NOT EXISTS passengers (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	booking_id BIGINT NOT NULL,
	full_name VARCHAR(255) NOT NULL,
	type VARCHAR(8) NOT NULL,
	seat_number INT NOT NULL,
	KEY idx_passenger_booking (booking_id),
	CONSTRAINT fk_passenger_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE RESTRICT
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"booking_seats", `
CREATE TABLE IF NOT EXISTS booking_seats (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	booking_id BIGINT NOT NULL,
	trip_id BIGINT NOT NULL,
	seat_number INT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_trip_seat (trip_id, seat_number),
	KEY idx_seat_booking (booking_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"loyalty_ledger", `
CREATE TABLE IF NOT EXISTS loyalty_ledger (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	booking_id BIGINT NOT NULL,
	phone VARCHAR(32) NOT NULL,
	points BIGINT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uniq_loyalty_booking (booking_id),
	KEY idx_loyalty_phone (phone)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
	{"agents", `
CREATE TABLE IF NOT EXISTS agents (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(120) NOT NULL,
	email VARCHAR(255) NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(32) NOT NULL DEFAULT 'agent',
	UNIQUE KEY uniq_agent_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`},
}

// EnsureSchema creates missing tables in dependency order.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db not available")
	}
	for _, t := range schema {
		if HasTable(ctx, db, t.name) {
			continue
		}
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	return nil
}
