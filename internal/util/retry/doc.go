// Package retry retries local infrastructure setup, such as opening the
// relational store, with exponential backoff.
//
// Hypervisor API calls are never retried; a timeout there surfaces to the
// caller as a normalized error.
package retry
