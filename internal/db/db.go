// Package db logs published measurement batches to a sqlite file for
// post-run analysis. Logging is optional; the bridge runs fine without it.
package db

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/vectornav/internal/msg"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS imu (
			stamp             TIMESTAMP,
			qx                DOUBLE,
			qy                DOUBLE,
			qz                DOUBLE,
			qw                DOUBLE,
			wx                DOUBLE,
			wy                DOUBLE,
			wz                DOUBLE,
			ax                DOUBLE,
			ay                DOUBLE,
			az                DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS fixes (
			stamp             TIMESTAMP,
			latitude          DOUBLE,
			longitude         DOUBLE,
			altitude          DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS odometry (
			stamp             TIMESTAMP,
			x                 DOUBLE,
			y                 DOUBLE,
			z                 DOUBLE,
			qx                DOUBLE,
			qy                DOUBLE,
			qz                DOUBLE,
			qw                DOUBLE,
			vx                DOUBLE,
			vy                DOUBLE,
			vz                DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS environment (
			stamp             TIMESTAMP,
			temperature_c     DOUBLE,
			pressure_pa       DOUBLE,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// RecordBatch writes every populated record in the batch. Environment rows
// are only written when both temperature and pressure are present, since a
// half-filled row is not useful for analysis.
func (db *DB) RecordBatch(b msg.Batch) error {
	if b.Imu != nil {
		if err := db.recordImu(b.Imu); err != nil {
			return err
		}
	}
	if b.Fix != nil {
		if err := db.recordFix(b.Fix); err != nil {
			return err
		}
	}
	if b.Odom != nil {
		if err := db.recordOdometry(b.Odom); err != nil {
			return err
		}
	}
	if b.Temp != nil && b.Pressure != nil {
		if err := db.recordEnvironment(b.Temp, b.Pressure); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) recordImu(m *msg.Imu) error {
	_, err := db.Exec(
		"INSERT INTO imu (stamp, qx, qy, qz, qw, wx, wy, wz, ax, ay, az) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.Header.Stamp,
		m.Orientation.X, m.Orientation.Y, m.Orientation.Z, m.Orientation.W,
		m.AngularVelocity.X, m.AngularVelocity.Y, m.AngularVelocity.Z,
		m.LinearAcceleration.X, m.LinearAcceleration.Y, m.LinearAcceleration.Z,
	)
	return err
}

func (db *DB) recordFix(m *msg.NavSatFix) error {
	_, err := db.Exec(
		"INSERT INTO fixes (stamp, latitude, longitude, altitude) VALUES (?, ?, ?, ?)",
		m.Header.Stamp, m.Latitude, m.Longitude, m.Altitude,
	)
	return err
}

func (db *DB) recordOdometry(m *msg.Odometry) error {
	_, err := db.Exec(
		"INSERT INTO odometry (stamp, x, y, z, qx, qy, qz, qw, vx, vy, vz) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.Header.Stamp,
		m.Position.X, m.Position.Y, m.Position.Z,
		m.Orientation.X, m.Orientation.Y, m.Orientation.Z, m.Orientation.W,
		m.TwistLinear.X, m.TwistLinear.Y, m.TwistLinear.Z,
	)
	return err
}

func (db *DB) recordEnvironment(t *msg.Temperature, p *msg.FluidPressure) error {
	_, err := db.Exec(
		"INSERT INTO environment (stamp, temperature_c, pressure_pa) VALUES (?, ?, ?)",
		t.Header.Stamp, t.Celsius, p.Pascals,
	)
	return err
}
