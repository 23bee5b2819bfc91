package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// schema contains the DDL for all tables. Statements are idempotent
// so EnsureSchema can run on every boot. Foreign keys cascade:
// deleting a user removes its devices and refresh tokens, deleting a
// device removes its readings. Refresh tokens are unique per
// (user_id, token_jti).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('user','admin') NOT NULL DEFAULT 'user',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS devices (
		id CHAR(36) NOT NULL,
		name VARCHAR(100) NOT NULL,
		category VARCHAR(50) NOT NULL DEFAULT 'custom',
		owner_id BIGINT UNSIGNED NOT NULL,
		status ENUM('active','blocked','deleted') NOT NULL DEFAULT 'active',
		secret_hash VARCHAR(255) NOT NULL,
		token_version INT NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		last_reading_at DATETIME NULL,
		deactivated_at DATETIME NULL,
		PRIMARY KEY (id),
		KEY idx_devices_owner (owner_id),
		CONSTRAINT fk_devices_owner FOREIGN KEY (owner_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		user_id BIGINT UNSIGNED NOT NULL,
		token_jti VARCHAR(64) NOT NULL,
		token_hash VARCHAR(255) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME NOT NULL,
		revoked TINYINT(1) NOT NULL DEFAULT 0,
		comment VARCHAR(255) NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_refresh_user_jti (user_id, token_jti),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS readings (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		device_id CHAR(36) NOT NULL,
		device_timestamp DATETIME NULL,
		received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		payload JSON NOT NULL,
		payload_size INT NOT NULL,
		PRIMARY KEY (id),
		KEY idx_readings_device_received (device_id, received_at),
		CONSTRAINT fk_readings_device FOREIGN KEY (device_id) REFERENCES devices (id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS security_events (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		actor_type VARCHAR(50) NOT NULL,
		actor_id VARCHAR(100) NULL,
		event_type VARCHAR(100) NOT NULL,
		status ENUM('success','denied','error') NOT NULL,
		detail TEXT NULL,
		PRIMARY KEY (id),
		KEY idx_events_created (created_at)
	) ENGINE=InnoDB`,
}

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
