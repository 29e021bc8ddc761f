// Package testing provides test doubles and builders shared by the control
// plane packages.
//
//   - RecordBuilder: fluent builder for hypervisor records
//   - MemoryStore: in-memory store with error injection
//   - ClientFixture: hands out MockClients per hypervisor id
//   - MockClient: configurable hypervisor.Client that counts calls
//
// Usage:
//
//	rec := testing.NewRecordBuilder("pve1").Connected().Build()
//	store := testing.NewMemoryStore(rec)
//	clients := testing.NewClientFixture()
//	clients.Mock(rec.ID).ListVMsFunc = ...
package testing
