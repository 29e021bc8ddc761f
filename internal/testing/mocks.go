package testing

import (
	"context"
	"sync"

	"github.com/imamik/hvplane/internal/hypervisor"
)

// MockClient is a configurable hypervisor.Client for tests. Unset funcs return zero
// values. Calls are counted per method.
type MockClient struct {
	RecordValue  *hypervisor.Record
	SubtypeValue hypervisor.Subtype

	ConnectFunc       func(ctx context.Context) error
	GetFunc           func(ctx context.Context, path string, out any) error
	PostFunc          func(ctx context.Context, path string, body, out any) error
	DeleteFunc        func(ctx context.Context, path string, out any) error
	ListVMsFunc       func(ctx context.Context) ([]hypervisor.VM, error)
	ListNodesFunc     func(ctx context.Context) ([]hypervisor.Node, error)
	ListTemplatesFunc func(ctx context.Context) ([]hypervisor.Template, error)
	VMDetailsFunc     func(ctx context.Context, node, vmID string) (*hypervisor.VMDetails, error)
	NextIDFunc        func(ctx context.Context) (string, error)
	CreateFromISOFunc func(ctx context.Context, req hypervisor.ISOCreate) (hypervisor.Created, error)
	CloneTemplateFunc func(ctx context.Context, req hypervisor.CloneCreate) (hypervisor.Created, error)
	PowerActionFunc   func(ctx context.Context, node, vmID string, action hypervisor.Action) (hypervisor.TaskHandle, error)
	LogoutFunc        func(ctx context.Context) error

	mu    sync.Mutex
	calls map[string]int
}

var _ hypervisor.Client = (*MockClient)(nil)

func (m *MockClient) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how often method was invoked.
func (m *MockClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of backend calls, excluding Record and Subtype.
func (m *MockClient) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

// Record implements hypervisor.Client.
func (m *MockClient) Record() *hypervisor.Record {
	return m.RecordValue
}

// Subtype reports the subtype discovered by Connect.
func (m *MockClient) Subtype() hypervisor.Subtype {
	return m.SubtypeValue
}

// Connect mocks authentication.
func (m *MockClient) Connect(ctx context.Context) error {
	m.record("Connect")
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

// Get mocks a raw GET.
func (m *MockClient) Get(ctx context.Context, path string, out any) error {
	m.record("Get")
	if m.GetFunc != nil {
		return m.GetFunc(ctx, path, out)
	}
	return nil
}

// Post mocks a raw POST.
func (m *MockClient) Post(ctx context.Context, path string, body, out any) error {
	m.record("Post")
	if m.PostFunc != nil {
		return m.PostFunc(ctx, path, body, out)
	}
	return nil
}

// Delete mocks a raw DELETE.
func (m *MockClient) Delete(ctx context.Context, path string, out any) error {
	m.record("Delete")
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, path, out)
	}
	return nil
}

// ListVMs mocks the VM listing.
func (m *MockClient) ListVMs(ctx context.Context) ([]hypervisor.VM, error) {
	m.record("ListVMs")
	if m.ListVMsFunc != nil {
		return m.ListVMsFunc(ctx)
	}
	return nil, nil
}

// ListNodes mocks the node listing.
func (m *MockClient) ListNodes(ctx context.Context) ([]hypervisor.Node, error) {
	m.record("ListNodes")
	if m.ListNodesFunc != nil {
		return m.ListNodesFunc(ctx)
	}
	return nil, nil
}

// ListTemplates mocks the template listing.
func (m *MockClient) ListTemplates(ctx context.Context) ([]hypervisor.Template, error) {
	m.record("ListTemplates")
	if m.ListTemplatesFunc != nil {
		return m.ListTemplatesFunc(ctx)
	}
	return nil, nil
}

// VMDetails mocks the detail read. Unset, it echoes the identity.
func (m *MockClient) VMDetails(ctx context.Context, node, vmID string) (*hypervisor.VMDetails, error) {
	m.record("VMDetails")
	if m.VMDetailsFunc != nil {
		return m.VMDetailsFunc(ctx, node, vmID)
	}
	return &hypervisor.VMDetails{Identity: hypervisor.Identity{NativeID: vmID, Node: node}}, nil
}

// NextID mocks id allocation.
func (m *MockClient) NextID(ctx context.Context) (string, error) {
	m.record("NextID")
	if m.NextIDFunc != nil {
		return m.NextIDFunc(ctx)
	}
	return "100", nil
}

// CreateFromISO mocks ISO-boot creation.
func (m *MockClient) CreateFromISO(ctx context.Context, req hypervisor.ISOCreate) (hypervisor.Created, error) {
	m.record("CreateFromISO")
	if m.CreateFromISOFunc != nil {
		return m.CreateFromISOFunc(ctx, req)
	}
	return hypervisor.Created{NativeID: req.VMID, Task: "mock-task"}, nil
}

// CloneTemplate mocks template cloning.
func (m *MockClient) CloneTemplate(ctx context.Context, req hypervisor.CloneCreate) (hypervisor.Created, error) {
	m.record("CloneTemplate")
	if m.CloneTemplateFunc != nil {
		return m.CloneTemplateFunc(ctx, req)
	}
	return hypervisor.Created{NativeID: req.VMID, Task: "mock-task"}, nil
}

// PowerAction mocks a power transition.
func (m *MockClient) PowerAction(ctx context.Context, node, vmID string, action hypervisor.Action) (hypervisor.TaskHandle, error) {
	m.record("PowerAction")
	if m.PowerActionFunc != nil {
		return m.PowerActionFunc(ctx, node, vmID, action)
	}
	return "mock-task", nil
}

// Logout mocks session release.
func (m *MockClient) Logout(ctx context.Context) error {
	m.record("Logout")
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}
