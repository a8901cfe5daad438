package store

import (
	"context"
	"fmt"
)

// Settings table schema: key/value pairs.
const (
	colSettingKey = iota + 1
	colSettingValue
)

var settingsHeader = []string{"key", "value"}

// SettingAdminChat holds the chat address of the admin notification channel.
const SettingAdminChat = "ADMIN_CHAT_ID"

// Setting returns the value for key; ok is false when the key is absent.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	rows, err := s.dataRows(ctx, TableSettings)
	if err != nil {
		return "", false, err
	}
	for _, r := range rows {
		if r.cell(colSettingKey) == key {
			return r.cell(colSettingValue), true, nil
		}
	}
	return "", false, nil
}

// SetSetting overwrites an existing key or appends a new one.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	rows, err := s.dataRows(ctx, TableSettings)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.cell(colSettingKey) == key {
			if err := s.rows.UpdateCell(ctx, TableSettings, r.index, colSettingValue, value); err != nil {
				return fmt.Errorf("update setting %s: %w", key, err)
			}
			return nil
		}
	}
	if err := s.rows.Append(ctx, TableSettings, []string{key, value}); err != nil {
		return fmt.Errorf("append setting %s: %w", key, err)
	}
	return nil
}

// Headers lists every table with its header row, for stores that
// provision tables on startup.
func Headers() map[string][]string {
	return map[string][]string{
		TableClients:     clientsHeader,
		TableServices:    servicesHeader,
		TableSlotCatalog: slotCatalogHeader,
		TableBookings:    bookingsHeader,
		TableCatchQueue:  catchQueueHeader,
		TableSettings:    settingsHeader,
	}
}
