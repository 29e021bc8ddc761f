package store

import (
	"context"
	"time"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
)

// CreateHypervisor inserts a record. The record is assigned an id and starts
// disconnected.
func (s *Store) CreateHypervisor(ctx context.Context, rec *hypervisor.Record) error {
	rec.ID = newID()
	if rec.Status == "" {
		rec.Status = hypervisor.StatusDisconnected
	}
	return wrap("store.CreateHypervisor", s.db.WithContext(ctx).Create(rowFromRecord(rec)).Error)
}

// GetHypervisor loads a record by id.
func (s *Store) GetHypervisor(ctx context.Context, id string) (*hypervisor.Record, error) {
	var row hypervisorRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, wrap("store.GetHypervisor", err)
	}
	return row.toRecord(), nil
}

// ResolveHypervisor loads a record by id or, failing that, by name.
func (s *Store) ResolveHypervisor(ctx context.Context, idOrName string) (*hypervisor.Record, error) {
	var row hypervisorRow
	err := s.db.WithContext(ctx).Where("id = ? OR name = ?", idOrName, idOrName).Order("id").Take(&row).Error
	if err != nil {
		return nil, wrap("store.ResolveHypervisor", err)
	}
	return row.toRecord(), nil
}

// ListHypervisors returns every record in listing order.
func (s *Store) ListHypervisors(ctx context.Context) ([]*hypervisor.Record, error) {
	return s.listHypervisors(ctx, "")
}

// ListConnectedHypervisors returns connected records in listing order.
func (s *Store) ListConnectedHypervisors(ctx context.Context) ([]*hypervisor.Record, error) {
	return s.listHypervisors(ctx, hypervisor.StatusConnected)
}

func (s *Store) listHypervisors(ctx context.Context, status hypervisor.Status) ([]*hypervisor.Record, error) {
	q := s.db.WithContext(ctx).Order("id")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}

	var rows []hypervisorRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, wrap("store.ListHypervisors", err)
	}

	out := make([]*hypervisor.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRecord())
	}
	return out, nil
}

// UpdateHypervisorStatus writes the outcome of a connection check. A nil
// subtype leaves the stored subtype unchanged.
func (s *Store) UpdateHypervisorStatus(ctx context.Context, id string, status hypervisor.Status, subtype *hypervisor.Subtype, lastSync time.Time) error {
	updates := map[string]any{
		"status":    string(status),
		"last_sync": lastSync,
	}
	if subtype != nil {
		updates["subtype"] = string(*subtype)
	}

	res := s.db.WithContext(ctx).Model(&hypervisorRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return wrap("store.UpdateHypervisorStatus", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("store.UpdateHypervisorStatus", "hypervisor %s not found", id)
	}
	return nil
}

// UpdateHypervisor rewrites the connection fields of rec.ID. The record
// returns to disconnected and its subtype and lastSync are cleared, since the
// previous check no longer describes it.
func (s *Store) UpdateHypervisor(ctx context.Context, rec *hypervisor.Record) error {
	updates := map[string]any{
		"name":            rec.Name,
		"type":            string(rec.Type),
		"host":            rec.Host,
		"credential_kind": string(rec.Credentials.Kind),
		"username":        rec.Credentials.Username,
		"token_name":      rec.Credentials.TokenName,
		"secret":          rec.Credentials.Secret,
		"insecure_tls":    rec.InsecureTLS,
		"status":          string(hypervisor.StatusDisconnected),
		"subtype":         nil,
		"last_sync":       nil,
	}

	res := s.db.WithContext(ctx).Model(&hypervisorRow{}).Where("id = ?", rec.ID).Updates(updates)
	if res.Error != nil {
		return wrap("store.UpdateHypervisor", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("store.UpdateHypervisor", "hypervisor %s not found", rec.ID)
	}
	rec.Status = hypervisor.StatusDisconnected
	rec.Subtype = nil
	rec.LastSync = nil
	return nil
}

// DeleteHypervisor removes a record. Inventory rows are kept.
func (s *Store) DeleteHypervisor(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&hypervisorRow{})
	if res.Error != nil {
		return wrap("store.DeleteHypervisor", res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("store.DeleteHypervisor", "hypervisor %s not found", id)
	}
	return nil
}
