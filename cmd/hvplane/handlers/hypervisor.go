package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/imamik/hvplane/internal/apierr"
	"github.com/imamik/hvplane/internal/hypervisor"
)

// secretEnvVar is read when --secret is not given, to keep secrets out of
// shell history.
const secretEnvVar = "HVPLANE_SECRET"

// HypervisorAddInput holds the flags of "hypervisor add".
type HypervisorAddInput struct {
	Name      string
	Type      string
	Host      string
	Username  string
	TokenName string
	Secret    string
	Insecure  bool
}

// hypervisorView is the printed shape of a record. Secrets never leave the store.
type hypervisorView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Subtype     string     `json:"subtype,omitempty"`
	Host        string     `json:"host"`
	Username    string     `json:"username"`
	TokenName   string     `json:"tokenName,omitempty"`
	InsecureTLS bool       `json:"insecureTLS"`
	Status      string     `json:"status"`
	LastSync    *time.Time `json:"lastSync,omitempty"`
}

func viewOf(rec *hypervisor.Record) hypervisorView {
	return hypervisorView{
		ID:          rec.ID,
		Name:        rec.Name,
		Type:        string(rec.Type),
		Subtype:     rec.SubtypeOrEmpty(),
		Host:        rec.Host,
		Username:    rec.Credentials.Username,
		TokenName:   rec.Credentials.TokenName,
		InsecureTLS: rec.InsecureTLS,
		Status:      string(rec.Status),
		LastSync:    rec.LastSync,
	}
}

// recordFromInput builds a record. Proxmox uses token credentials, vSphere
// username and password.
func recordFromInput(in HypervisorAddInput) *hypervisor.Record {
	secret := in.Secret
	if secret == "" {
		secret = os.Getenv(secretEnvVar)
	}

	typ := hypervisor.Type(strings.ToLower(strings.TrimSpace(in.Type)))
	kind := hypervisor.CredentialPassword
	if typ == hypervisor.TypeProxmox {
		kind = hypervisor.CredentialToken
	}

	return &hypervisor.Record{
		Name: in.Name,
		Type: typ,
		Host: in.Host,
		Credentials: hypervisor.Credentials{
			Kind:      kind,
			Username:  in.Username,
			TokenName: in.TokenName,
			Secret:    secret,
		},
		InsecureTLS: in.Insecure,
	}
}

// HypervisorAdd stores a new hypervisor record.
func HypervisorAdd(ctx context.Context, opts Options, in HypervisorAddInput) error {
	return run(ctx, opts, func(a *app) error {
		rec := recordFromInput(in)
		if err := a.svc.AddHypervisor(ctx, rec); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(viewOf(rec))
		}
		_, err := fmt.Fprintf(stdout, "Added %s hypervisor %q (%s)\n", rec.Type, rec.Name, rec.ID)
		return err
	})
}

// HypervisorUpdateInput holds the flags of "hypervisor update". Empty
// fields keep the stored value; Insecure is nil unless the flag was given.
type HypervisorUpdateInput struct {
	Name      string
	Type      string
	Host      string
	Username  string
	TokenName string
	Secret    string
	Insecure  *bool
}

// merge applies the given flags over rec.
func (in HypervisorUpdateInput) merge(rec *hypervisor.Record) *hypervisor.Record {
	out := *rec
	if in.Name != "" {
		out.Name = in.Name
	}
	if in.Type != "" {
		out.Type = hypervisor.Type(strings.ToLower(strings.TrimSpace(in.Type)))
		out.Credentials.Kind = hypervisor.CredentialPassword
		if out.Type == hypervisor.TypeProxmox {
			out.Credentials.Kind = hypervisor.CredentialToken
		}
	}
	if in.Host != "" {
		out.Host = in.Host
	}
	if in.Username != "" {
		out.Credentials.Username = in.Username
	}
	if in.TokenName != "" {
		out.Credentials.TokenName = in.TokenName
	}
	secret := in.Secret
	if secret == "" {
		secret = os.Getenv(secretEnvVar)
	}
	if secret != "" {
		out.Credentials.Secret = secret
	}
	if in.Insecure != nil {
		out.InsecureTLS = *in.Insecure
	}
	return &out
}

// HypervisorUpdate changes a stored record. The record keeps its id and
// must be connected again.
func HypervisorUpdate(ctx context.Context, opts Options, id string, in HypervisorUpdateInput) error {
	return run(ctx, opts, func(a *app) error {
		current, err := a.svc.GetHypervisor(ctx, id)
		if err != nil {
			return err
		}
		rec := in.merge(current)
		if err := a.svc.UpdateHypervisor(ctx, current.ID, rec); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(viewOf(rec))
		}
		_, err = fmt.Fprintf(stdout, "Updated %s hypervisor %q (%s), status %s\n", rec.Type, rec.Name, rec.ID, rec.Status)
		return err
	})
}

// HypervisorList prints every stored hypervisor.
func HypervisorList(ctx context.Context, opts Options) error {
	return run(ctx, opts, func(a *app) error {
		recs, err := a.svc.ListHypervisors(ctx)
		if err != nil {
			return err
		}

		views := make([]hypervisorView, 0, len(recs))
		for _, rec := range recs {
			views = append(views, viewOf(rec))
		}

		if !a.styled() {
			return printJSON(views)
		}
		_, err = fmt.Fprint(stdout, renderHypervisors(views))
		return err
	})
}

// HypervisorConnect checks a hypervisor and prints its new status.
func HypervisorConnect(ctx context.Context, opts Options, id string) error {
	return run(ctx, opts, func(a *app) error {
		rec, err := a.svc.Connect(ctx, id)
		if err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(viewOf(rec))
		}

		line := fmt.Sprintf("%s: %s", rec.Name, rec.Status)
		if st := rec.SubtypeOrEmpty(); st != "" {
			line += " (" + st + ")"
		}
		_, err = fmt.Fprintln(stdout, line)
		return err
	})
}

// HypervisorConnectAll checks every stored hypervisor and prints one line
// per record. Any failed check fails the command after printing.
func HypervisorConnectAll(ctx context.Context, opts Options) error {
	return run(ctx, opts, func(a *app) error {
		recs, checkErr := a.svc.ConnectAll(ctx)
		if recs == nil && checkErr != nil {
			return checkErr
		}

		views := make([]hypervisorView, 0, len(recs))
		for _, rec := range recs {
			views = append(views, viewOf(rec))
		}
		if opts.JSON {
			out := struct {
				Hypervisors []hypervisorView `json:"hypervisors"`
				Error       *apierr.Envelope `json:"error,omitempty"`
			}{Hypervisors: views}
			if checkErr != nil {
				env := a.svc.NormalizeError(checkErr)
				out.Error = &env
			}
			if err := printJSON(out); err != nil {
				return err
			}
			if checkErr != nil {
				return ErrReported
			}
			return nil
		}

		for _, v := range views {
			line := fmt.Sprintf("%s: %s", v.Name, v.Status)
			if v.Subtype != "" {
				line += " (" + v.Subtype + ")"
			}
			if _, err := fmt.Fprintln(stdout, line); err != nil {
				return err
			}
		}
		return checkErr
	})
}

// HypervisorRemove deletes a hypervisor record.
func HypervisorRemove(ctx context.Context, opts Options, id string) error {
	return run(ctx, opts, func(a *app) error {
		if err := a.svc.RemoveHypervisor(ctx, id); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(map[string]string{"removed": id})
		}
		_, err := fmt.Fprintf(stdout, "Removed hypervisor %s\n", id)
		return err
	})
}
