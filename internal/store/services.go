package store

import (
	"context"
	"fmt"

	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/slot"
)

// Services table schema.
const (
	colServiceID = iota + 1
	colServiceName
	colServicePrice
	colServiceDuration
)

var servicesHeader = []string{"id", "name", "price", "duration"}

func (s *Store) Services(ctx context.Context) ([]model.Service, error) {
	rows, err := s.dataRows(ctx, TableServices)
	if err != nil {
		return nil, err
	}
	out := make([]model.Service, 0, len(rows))
	for _, r := range rows {
		if r.cell(colServiceID) == "" || r.cell(colServiceName) == "" {
			continue
		}
		svc := model.Service{
			ID:       r.cell(colServiceID),
			Name:     r.cell(colServiceName),
			Price:    r.intCell(colServicePrice),
			Duration: r.intCell(colServiceDuration),
		}
		if svc.Duration == 0 {
			svc.Duration = 60
		}
		out = append(out, svc)
	}
	return out, nil
}

func (s *Store) ServiceByName(ctx context.Context, name string) (model.Service, error) {
	services, err := s.Services(ctx)
	if err != nil {
		return model.Service{}, err
	}
	for _, svc := range services {
		if svc.Name == name {
			return svc, nil
		}
	}
	return model.Service{}, model.ErrServiceNotFound
}

func (s *Store) ServiceByID(ctx context.Context, id string) (model.Service, error) {
	services, err := s.Services(ctx)
	if err != nil {
		return model.Service{}, err
	}
	for _, svc := range services {
		if svc.ID == id {
			return svc, nil
		}
	}
	return model.Service{}, model.ErrServiceNotFound
}

// SlotCatalog table schema: one bookable date+time per row.
const (
	colCatalogDate = iota + 1
	colCatalogTime
)

var slotCatalogHeader = []string{"date", "time"}

// AppendCatalogRow adds one bookable date+time to the catalog.
func (s *Store) AppendCatalogRow(ctx context.Context, date, clock string) error {
	if _, err := slot.Parse(date+" "+clock, s.loc); err != nil {
		return err
	}
	if err := s.rows.Append(ctx, TableSlotCatalog, []string{date, clock}); err != nil {
		return fmt.Errorf("append catalog row: %w", err)
	}
	return nil
}

// SlotCatalog returns every cataloged slot. Malformed rows are skipped.
func (s *Store) SlotCatalog(ctx context.Context) ([]slot.ID, error) {
	rows, err := s.dataRows(ctx, TableSlotCatalog)
	if err != nil {
		return nil, err
	}
	out := make([]slot.ID, 0, len(rows))
	for _, r := range rows {
		date, clock := r.cell(colCatalogDate), r.cell(colCatalogTime)
		if date == "" || clock == "" {
			continue
		}
		id, err := slot.Parse(date+" "+clock, s.loc)
		if err != nil {
			s.logger.Warn("skipping bad catalog row", "row", r.index, "date", date, "time", clock)
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
