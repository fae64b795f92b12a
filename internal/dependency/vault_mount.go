package dependency

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"
)

// kvMount describes the secrets engine mounted above a secret path.
type kvMount struct {
	Path    string
	Version int
}

// lookupKVMount asks Vault which mount serves secretPath. Servers without
// the mounts endpoint, and anonymous clients refused by it, are treated as
// KV v1.
func lookupKVMount(ctx context.Context, client *vaultapi.Client, secretPath string) (kvMount, error) {
	v1 := kvMount{Version: 1}

	// a wrapped response would hide the mount data
	wrap := client.CurrentWrappingLookupFunc()
	client.SetWrappingLookupFunc(nil)
	defer client.SetWrappingLookupFunc(wrap)

	r := client.NewRequest(http.MethodGet, "/v1/sys/internal/ui/mounts/"+secretPath)
	resp, err := client.RawRequestWithContext(ctx, r)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return v1, nil
		}
		if client.Token() == "" {
			return v1, nil
		}
		return v1, err
	}

	secret, err := vaultapi.ParseSecret(resp.Body)
	if err != nil {
		return v1, err
	}
	if secret == nil {
		return v1, fmt.Errorf("no mount found for %s", secretPath)
	}

	m := v1
	m.Path, _ = secret.Data["path"].(string)
	mountType, _ := secret.Data["type"].(string)
	options, _ := secret.Data["options"].(map[string]interface{})
	if version, _ := options["version"].(string); version == "2" && mountType == "kv" {
		m.Version = 2
	}
	return m, nil
}

// ReadPath returns the path a read of secretPath must use on this mount.
// KV v2 stores secret data below <mount>/data/; paths already addressing
// data/ or metadata/ are kept.
func (m kvMount) ReadPath(secretPath string) string {
	if m.Version != 2 {
		return secretPath
	}
	if secretPath == m.Path || secretPath == strings.TrimSuffix(m.Path, "/") {
		return path.Join(m.Path, "data")
	}
	rel := strings.TrimPrefix(secretPath, m.Path)
	if strings.HasPrefix(rel, "data/") || strings.HasPrefix(rel, "metadata/") {
		return secretPath
	}
	return path.Join(m.Path, "data", rel)
}

// Data returns the key/value pairs of a secret read through ReadPath.
func (m kvMount) Data(secret *vaultapi.Secret) (map[string]interface{}, bool) {
	if secret == nil || secret.Data == nil {
		return nil, false
	}
	if m.Version != 2 {
		return secret.Data, true
	}
	nested, ok := secret.Data["data"].(map[string]interface{})
	return nested, ok
}
