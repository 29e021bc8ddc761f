package store

import (
	"time"

	"github.com/imamik/hvplane/internal/hypervisor"
)

// hypervisorRow is the persisted form of a hypervisor.Record. Rows are listed
// by id; ids are UUIDv7 and therefore ordered by creation.
type hypervisorRow struct {
	ID             string     `gorm:"column:id;primaryKey;size:36"`
	Name           string     `gorm:"column:name;size:128;uniqueIndex"`
	Type           string     `gorm:"column:type;size:16;not null"`
	Subtype        *string    `gorm:"column:subtype;size:16"`
	Host           string     `gorm:"column:host;not null"`
	CredentialKind string     `gorm:"column:credential_kind;size:16;not null"`
	Username       string     `gorm:"column:username;not null"`
	TokenName      string     `gorm:"column:token_name"`
	Secret         string     `gorm:"column:secret"`
	InsecureTLS    bool       `gorm:"column:insecure_tls;default:false"`
	Status         string     `gorm:"column:status;size:16;index;not null"`
	LastSync       *time.Time `gorm:"column:last_sync"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (hypervisorRow) TableName() string {
	return "hypervisors"
}

func (r *hypervisorRow) toRecord() *hypervisor.Record {
	rec := &hypervisor.Record{
		ID:   r.ID,
		Name: r.Name,
		Type: hypervisor.Type(r.Type),
		Host: r.Host,
		Credentials: hypervisor.Credentials{
			Kind:      hypervisor.CredentialKind(r.CredentialKind),
			Username:  r.Username,
			TokenName: r.TokenName,
			Secret:    r.Secret,
		},
		InsecureTLS: r.InsecureTLS,
		Status:      hypervisor.Status(r.Status),
		LastSync:    r.LastSync,
	}
	if r.Subtype != nil {
		st := hypervisor.Subtype(*r.Subtype)
		rec.Subtype = &st
	}
	return rec
}

func rowFromRecord(rec *hypervisor.Record) *hypervisorRow {
	row := &hypervisorRow{
		ID:             rec.ID,
		Name:           rec.Name,
		Type:           string(rec.Type),
		Host:           rec.Host,
		CredentialKind: string(rec.Credentials.Kind),
		Username:       rec.Credentials.Username,
		TokenName:      rec.Credentials.TokenName,
		Secret:         rec.Credentials.Secret,
		InsecureTLS:    rec.InsecureTLS,
		Status:         string(rec.Status),
		LastSync:       rec.LastSync,
	}
	if rec.Subtype != nil {
		s := string(*rec.Subtype)
		row.Subtype = &s
	}
	return row
}

type planRow struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	Name      string    `gorm:"column:name;size:128;uniqueIndex"`
	CPU       int       `gorm:"column:cpu"`
	MemoryMB  int64     `gorm:"column:memory_mb"`
	DiskGB    int64     `gorm:"column:disk_gb"`
	Active    bool      `gorm:"column:active;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (planRow) TableName() string {
	return "vm_plans"
}

type provisionedVMRow struct {
	ID           string    `gorm:"column:id;primaryKey;size:36"`
	Name         string    `gorm:"column:name;not null"`
	Description  string    `gorm:"column:description"`
	HypervisorID string    `gorm:"column:hypervisor_id;size:36;index"`
	NativeID     string    `gorm:"column:native_id;index"`
	Node         string    `gorm:"column:node"`
	Status       string    `gorm:"column:status;size:32"`
	CPU          int       `gorm:"column:cpu"`
	MemoryMB     int64     `gorm:"column:memory_mb"`
	DiskGB       int64     `gorm:"column:disk_gb"`
	Task         string    `gorm:"column:task"`
	TicketID     *string   `gorm:"column:ticket_id"`
	ClientID     *string   `gorm:"column:client_id"`
	CreatedBy    string    `gorm:"column:created_by"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (provisionedVMRow) TableName() string {
	return "provisioned_vms"
}
