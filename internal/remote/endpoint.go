package remote

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"vidingest/internal/config"
)

// Endpoint holds the connection parameters of one remote target. Credentials
// are references: PasswordEnv names an environment variable that is read at
// dial time and never written.
type Endpoint struct {
	Name                  string
	Kind                  string
	Host                  string
	Port                  int
	User                  string
	IdentityFile          string
	PasswordEnv           string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	Platform              string
	Command               string
	Timeout               time.Duration
}

// Address returns host:port for dialing.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// WSL reports whether commands run inside WSL on a Windows host.
func (e Endpoint) WSL() bool {
	return e.Kind == config.KindSSHWSL
}

func (e Endpoint) password() (string, error) {
	name := strings.TrimSpace(e.PasswordEnv)
	if name == "" {
		return "", nil
	}
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("password environment variable %s is not set", name)
	}
	return value, nil
}
