package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type statusErr struct {
	status int
	msg    string
}

func (e *statusErr) Error() string   { return e.msg }
func (e *statusErr) StatusCode() int { return e.status }

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		env        string
		err        error
		wantStatus int
		wantMsg    string
		wantSugg   string
	}{
		{
			name:       "nil",
			err:        nil,
			wantStatus: http.StatusOK,
			wantMsg:    "OK",
		},
		{
			name:       "connection refused syscall",
			err:        fmt.Errorf("dial: %w", syscall.ECONNREFUSED),
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "Connection refused",
			wantSugg:   "firewall",
		},
		{
			name:       "connection refused text",
			err:        errors.New("dial tcp 10.0.0.1:8006: connect: connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "Connection refused",
		},
		{
			name:       "deadline",
			err:        fmt.Errorf("get nodes: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantMsg:    "Hypervisor request timed out",
		},
		{
			name:       "proxmox 401",
			err:        &statusErr{status: 401, msg: "authentication failure"},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Authentication failed",
			wantSugg:   "credentials",
		},
		{
			name:       "wrapped vsphere 401",
			err:        Wrap(KindRejected, "list vms", &statusErr{status: 401, msg: "unauthenticated"}),
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Authentication failed",
		},
		{
			name:       "403",
			err:        &statusErr{status: 403, msg: "Permission check failed"},
			wantStatus: http.StatusForbidden,
			wantMsg:    "Permission denied",
			wantSugg:   "role privileges",
		},
		{
			name:       "595 production",
			env:        EnvProduction,
			err:        &statusErr{status: 595, msg: "Errors during connection establishment"},
			wantStatus: StatusCertificateFailed,
			wantMsg:    "Certificate verification failed",
			wantSugg:   "trusted authority",
		},
		{
			name:       "595 development",
			env:        EnvDevelopment,
			err:        &statusErr{status: 595, msg: "Errors during connection establishment"},
			wantStatus: StatusCertificateFailed,
			wantMsg:    "Certificate verification failed",
			wantSugg:   "insecureTLS",
		},
		{
			name:       "pass-through status",
			err:        &statusErr{status: 500, msg: "VM 100 already running"},
			wantStatus: 500,
			wantMsg:    "VM 100 already running",
		},
		{
			name:       "validation",
			err:        Validation("create", "name is required"),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "create: name is required",
		},
		{
			name:       "auth kind",
			err:        New(KindAuth, "connect", "all strategies failed"),
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Authentication failed",
		},
		{
			name: "joined auth attempts with low statuses",
			err: &Error{Kind: KindAuth, Op: "vsphere.Connect", Message: "all authentication strategies failed",
				Err: errors.Join(
					fmt.Errorf("rest: %w", &statusErr{status: 404, msg: "not found"}),
					fmt.Errorf("ui-login: %w", &statusErr{status: 200, msg: "login did not redirect"}),
					fmt.Errorf("soap-basic: %w", Wrap(KindAuth, "soap basic", &statusErr{status: 401, msg: "rejected"})),
				)},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Authentication failed",
			wantSugg:   "credentials",
		},
		{
			name:       "auth kind carrying 403",
			err:        Wrap(KindAuth, "list nodes", &statusErr{status: 403, msg: "forbidden"}),
			wantStatus: http.StatusForbidden,
			wantMsg:    "Permission denied",
		},
		{
			name:       "success status is not passed through",
			err:        Wrap(KindRejected, "start vm", &statusErr{status: 200, msg: "unexpected body"}),
			wantStatus: http.StatusBadGateway,
			wantMsg:    "start vm: unexpected body",
		},
		{
			name:       "not found",
			err:        NotFound("locate", "vm %s not found", "150"),
			wantStatus: http.StatusNotFound,
			wantMsg:    "locate: vm 150 not found",
		},
		{
			name:       "unclassified",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := NewNormalizer(tt.env).Normalize(tt.err)
			assert.Equal(t, tt.wantStatus, env.HTTPStatus)
			assert.Equal(t, tt.wantMsg, env.Message)
			if tt.wantSugg != "" {
				assert.Contains(t, env.Suggestion, tt.wantSugg)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	t.Parallel()

	inner := NotFound("locate", "missing")
	outer := Wrap(KindRejected, "action", inner)

	assert.True(t, IsKind(outer, KindRejected))
	assert.True(t, IsKind(outer, KindNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("context: %w", outer)))
	assert.False(t, IsKind(outer, KindAuth))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
	assert.Equal(t, KindRejected, KindOf(outer))
	assert.Nil(t, Wrap(KindAuth, "x", nil))
}

func TestErrorString(t *testing.T) {
	t.Parallel()

	err := &Error{Kind: KindPersistence, Op: "record vm", Message: "insert failed", Err: errors.New("disk full")}
	assert.Equal(t, "record vm: insert failed: disk full", err.Error())
	assert.ErrorIs(t, err, err.Err)
}
