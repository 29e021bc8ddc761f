// Package provisioning creates VMs on a hypervisor.
//
// CreateVM runs a fixed pipeline of phases over a shared Context:
//
//   - validation: reject bad specs before any backend call
//   - session: resolve the target record and open a client
//   - placement: pick the node (first listed node by default)
//   - allocation: reserve a VM id when the backend expects one
//   - create: boot from an ISO or full-clone a template
//   - power-on: start the VM once when requested and a task handle exists
//   - record: write the local inventory row
//
// State accumulates each phase's results. A failure after the backend
// confirmed the creation never fails the operation: it becomes a warning.
package provisioning
