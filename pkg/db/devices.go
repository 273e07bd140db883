package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/devicehub/pkg/device"
)

// DeviceStore persists devices of one profile, one row per device id.
// It implements device.Store.
type DeviceStore struct {
	db        *DB
	profileID int64
}

// Devices returns the device store scoped to a profile.
func (db *DB) Devices(profileID int64) *DeviceStore {
	return &DeviceStore{db: db, profileID: profileID}
}

// LoadDevices returns every decodable device row. Rows holding corrupt JSON
// are logged and skipped.
func (s *DeviceStore) LoadDevices(ctx context.Context) ([]device.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data FROM devices WHERE profile_id = ? ORDER BY created_at, id
	`, s.profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var devices []device.Device
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}

		var d device.Device
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			log.Warn().Err(err).Str("device_id", id).Msg("Skipping corrupt device row")
			continue
		}
		if d.ID == "" {
			d.ID = id
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// SaveDevice upserts one device row.
func (s *DeviceStore) SaveDevice(ctx context.Context, d *device.Device) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode device %s: %w", d.ID, err)
	}

	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO devices (id, profile_id, name, type, protocol, data)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(profile_id, id) DO UPDATE SET
				name = excluded.name,
				type = excluded.type,
				protocol = excluded.protocol,
				data = excluded.data,
				updated_at = datetime('now')
		`, d.ID, s.profileID, d.Name, string(d.Type), string(d.Protocol), string(data))
		if err != nil {
			return fmt.Errorf("failed to save device %s: %w", d.ID, err)
		}
		return nil
	})
}

// DeleteDevice removes a device row. Absent ids are ignored.
func (s *DeviceStore) DeleteDevice(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE profile_id = ? AND id = ?`, s.profileID, id); err != nil {
		return fmt.Errorf("failed to delete device %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored devices.
func (s *DeviceStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices WHERE profile_id = ?`, s.profileID).Scan(&n)
	return n, err
}

var _ device.Store = (*DeviceStore)(nil)
