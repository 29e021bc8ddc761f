package testing

import (
	"time"

	"github.com/imamik/hvplane/internal/hypervisor"
)

// RecordBuilder provides a fluent interface for constructing hypervisor
// records. Each method returns a new builder (immutable) for chaining.
type RecordBuilder struct {
	rec hypervisor.Record
}

// NewRecordBuilder starts a disconnected Proxmox record whose id and name
// are both id.
func NewRecordBuilder(id string) *RecordBuilder {
	return &RecordBuilder{
		rec: hypervisor.Record{
			ID:   id,
			Name: id,
			Type: hypervisor.TypeProxmox,
			Host: id + ".test:8006",
			Credentials: hypervisor.Credentials{
				Kind:      hypervisor.CredentialToken,
				Username:  "root@pam",
				TokenName: "hvplane",
				Secret:    "secret",
			},
			Status: hypervisor.StatusDisconnected,
		},
	}
}

// WithName sets the display name.
func (b *RecordBuilder) WithName(name string) *RecordBuilder {
	nb := b.clone()
	nb.rec.Name = name
	return nb
}

// WithHost sets the host address.
func (b *RecordBuilder) WithHost(host string) *RecordBuilder {
	nb := b.clone()
	nb.rec.Host = host
	return nb
}

// VSphere switches the record to a password-authenticated vSphere endpoint.
func (b *RecordBuilder) VSphere(subtype hypervisor.Subtype) *RecordBuilder {
	nb := b.clone()
	nb.rec.Type = hypervisor.TypeVSphere
	nb.rec.Credentials = hypervisor.Credentials{
		Kind:     hypervisor.CredentialPassword,
		Username: "administrator@vsphere.local",
		Secret:   "secret",
	}
	if subtype != "" {
		nb.rec.Subtype = &subtype
	}
	return nb
}

// WithStatus sets the connection status.
func (b *RecordBuilder) WithStatus(status hypervisor.Status) *RecordBuilder {
	nb := b.clone()
	nb.rec.Status = status
	return nb
}

// Connected marks the record as connected and synced.
func (b *RecordBuilder) Connected() *RecordBuilder {
	nb := b.WithStatus(hypervisor.StatusConnected)
	synced := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nb.rec.LastSync = &synced
	return nb
}

// Build returns the constructed record.
func (b *RecordBuilder) Build() *hypervisor.Record {
	rec := b.clone().rec
	return &rec
}

func (b *RecordBuilder) clone() *RecordBuilder {
	rec := b.rec
	if b.rec.Subtype != nil {
		st := *b.rec.Subtype
		rec.Subtype = &st
	}
	if b.rec.LastSync != nil {
		ls := *b.rec.LastSync
		rec.LastSync = &ls
	}
	return &RecordBuilder{rec: rec}
}
