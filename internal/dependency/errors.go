package dependency

import (
	"errors"

	consulapi "github.com/hashicorp/consul/api"
)

// ErrNoClient is returned when a provider is used without the client it
// reads from being configured in the ClientSet.
var ErrNoClient = errors.New("client not configured")

// ErrMissingField is returned when a Vault secret has no value for the
// requested field.
var ErrMissingField = errors.New("secret field missing")

// ConsulAPIStatus contains information about the api status from Consul
type ConsulAPIStatus struct {
	Code int
	Body string
}

// DecodeConsulStatusError returns the decoded parameters
// from a Consul API StatusError as a ConsulAPIStatus
func DecodeConsulStatusError(err error) (ConsulAPIStatus, bool) {
	var serr consulapi.StatusError
	if errors.As(err, &serr) {
		return ConsulAPIStatus{serr.Code, serr.Body}, true
	}

	return ConsulAPIStatus{0, ""}, false
}
