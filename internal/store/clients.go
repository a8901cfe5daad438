package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ledassalon/slotbot/internal/model"
)

// Clients table schema.
const (
	colClientID = iota + 1
	colClientName
	colClientLastName
	colClientPhone
	colClientHandle
	colClientChatID
)

var clientsHeader = []string{"id", "name", "last_name", "phone", "handle", "chat_id"}

type ClientRow struct {
	Row int
	model.Client
}

func (s *Store) Clients(ctx context.Context) ([]ClientRow, error) {
	rows, err := s.dataRows(ctx, TableClients)
	if err != nil {
		return nil, err
	}
	out := make([]ClientRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ClientRow{
			Row: r.index,
			Client: model.Client{
				ID:       r.cell(colClientID),
				Name:     r.cell(colClientName),
				LastName: r.cell(colClientLastName),
				Phone:    r.cell(colClientPhone),
				Handle:   r.cell(colClientHandle),
				ChatID:   r.int64Cell(colClientChatID),
			},
		})
	}
	return out, nil
}

func (s *Store) ClientByID(ctx context.Context, id string) (ClientRow, error) {
	clients, err := s.Clients(ctx)
	if err != nil {
		return ClientRow{}, err
	}
	for _, c := range clients {
		if c.ID == id {
			return c, nil
		}
	}
	return ClientRow{}, model.ErrClientNotFound
}

// FindClient matches a returning client by messaging handle first, then by
// chat address.
func (s *Store) FindClient(ctx context.Context, handle string, chatID int64) (ClientRow, error) {
	clients, err := s.Clients(ctx)
	if err != nil {
		return ClientRow{}, err
	}
	for _, c := range clients {
		if handle != "" && c.Handle == handle {
			return c, nil
		}
		if c.ChatID != 0 && c.ChatID == chatID {
			return c, nil
		}
	}
	return ClientRow{}, model.ErrClientNotFound
}

// AddClient assigns the next unused client id and persists the row.
func (s *Store) AddClient(ctx context.Context, c model.Client) (string, error) {
	clients, err := s.Clients(ctx)
	if err != nil {
		return "", err
	}
	next := 1
	for _, existing := range clients {
		if n, err := strconv.Atoi(existing.ID); err == nil && n >= next {
			next = n + 1
		}
	}
	id := strconv.Itoa(next)
	row := []string{id, c.Name, c.LastName, c.Phone, c.Handle, strconv.FormatInt(c.ChatID, 10)}
	if err := s.rows.Append(ctx, TableClients, row); err != nil {
		return "", fmt.Errorf("append client: %w", err)
	}
	return id, nil
}

// RefreshClientChat updates the stored chat address for a returning client.
func (s *Store) RefreshClientChat(ctx context.Context, row int, chatID int64) error {
	if err := s.rows.UpdateCell(ctx, TableClients, row, colClientChatID, strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("refresh client chat: %w", err)
	}
	return nil
}
