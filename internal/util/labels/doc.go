// Package labels normalizes the tags attached to created VMs.
//
// Proxmox stores tags as a semicolon-separated list and only accepts a
// restricted charset, so every tag is lowercased and sanitized before it
// reaches a backend.
package labels
