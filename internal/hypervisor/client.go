package hypervisor

import (
	"context"
	"fmt"
	"strings"
)

// Action is a normalized power action.
type Action string

const (
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionRestart  Action = "restart"
	ActionSuspend  Action = "suspend"
	ActionResume   Action = "resume"
	ActionShutdown Action = "shutdown"
)

// Actions lists the supported vocabulary in display order.
var Actions = []Action{ActionStart, ActionStop, ActionRestart, ActionSuspend, ActionResume, ActionShutdown}

// ParseAction validates a user-supplied action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ISOCreate describes a VM that boots from an installation image.
type ISOCreate struct {
	Node        string
	VMID        string
	Name        string
	Description string
	Tags        []string
	Cores       int
	MemoryMB    int
	DiskGB      int
	ISO         string
	Storage     string
	Bridge      string
}

// CloneCreate describes a full clone of a template with post-clone overrides.
type CloneCreate struct {
	Node        string
	VMID        string
	TemplateID  string
	Name        string
	Description string
	Tags        []string
	Cores       int
	MemoryMB    int
	Storage     string
}

// Created is the backend answer to a creation call.
type Created struct {
	NativeID string
	Task     TaskHandle
	// Warnings lists follow-up steps that failed after the VM already existed.
	Warnings []string
}

// Client is an authenticated handle to one hypervisor backend.
//
// Every Client is a leased session: callers must call Logout exactly once
// when they are done with it.
type Client interface {
	Record() *Record

	// Get, Post and Delete issue raw calls relative to the backend base URL.
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error

	// ListVMs returns the cluster-wide VM listing.
	ListVMs(ctx context.Context) ([]VM, error)
	// ListNodes returns capacity inputs for every node, in listing order.
	ListNodes(ctx context.Context) ([]Node, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	// VMDetails reads the configuration and live usage of a VM on node.
	VMDetails(ctx context.Context, node, vmID string) (*VMDetails, error)

	// NextID allocates the next cluster-unique VM id. Backends that assign
	// ids themselves return "".
	NextID(ctx context.Context) (string, error)
	CreateFromISO(ctx context.Context, req ISOCreate) (Created, error)
	CloneTemplate(ctx context.Context, req CloneCreate) (Created, error)
	PowerAction(ctx context.Context, node, vmID string, action Action) (TaskHandle, error)

	Logout(ctx context.Context) error
}
