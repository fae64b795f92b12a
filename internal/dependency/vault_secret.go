package dependency

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shepherd-chms/pagecat/dep"
)

// VaultSecretQuery reads a single field of a Vault secret. Both KV v1 and
// KV v2 mounts are supported; for v2 the latest version is read.
type VaultSecretQuery struct {
	rawPath string
	field   string
}

// NewVaultSecretQuery parses "<path>#<field>" into a query. The field
// defaults to "password".
func NewVaultSecretQuery(s string) (*VaultSecretQuery, error) {
	s = strings.TrimSpace(s)
	field := "password"
	if i := strings.LastIndex(s, "#"); i >= 0 {
		field = strings.TrimSpace(s[i+1:])
		s = s[:i]
	}
	s = strings.Trim(s, "/")
	if s == "" || field == "" {
		return nil, fmt.Errorf("vault.secret: invalid format: %q", s)
	}

	return &VaultSecretQuery{
		rawPath: s,
		field:   field,
	}, nil
}

// Fetch reads the secret and returns the field as a string. Non-string
// values are formatted with fmt.
func (d *VaultSecretQuery) Fetch(ctx context.Context, clients dep.Clients) (string, error) {
	if clients == nil || clients.Vault() == nil {
		return "", errors.Wrap(ErrNoClient, d.ID())
	}
	client := clients.Vault()

	mount, err := lookupKVMount(ctx, client, d.rawPath)
	if err != nil {
		// the secret itself may still be readable as KV v1
		mount = kvMount{Version: 1}
	}
	secretPath := mount.ReadPath(d.rawPath)

	secret, err := client.Logical().Read(secretPath)
	if err != nil {
		return "", errors.Wrap(err, d.ID())
	}
	data, ok := mount.Data(secret)
	if !ok {
		return "", errors.Wrapf(ErrMissingField, "%s: no secret at %s", d.ID(), secretPath)
	}

	value, ok := data[d.field]
	if !ok || value == nil {
		return "", errors.Wrap(ErrMissingField, d.ID())
	}
	if s, ok := value.(string); ok {
		return s, nil
	}
	return fmt.Sprint(value), nil
}

// ID returns the human-friendly version of this query.
func (d *VaultSecretQuery) ID() string {
	return fmt.Sprintf("vault.secret(%s#%s)", d.rawPath, d.field)
}

// Stringer interface reuses ID
func (d *VaultSecretQuery) String() string {
	return d.ID()
}
