package fetcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bgentry/go-netrc/netrc"
	"github.com/rotisserie/eris"
)

// DefaultNetrcPath is where credentials are looked up when no path is configured.
const DefaultNetrcPath = "~/.netrc"

// AuthFromNetrc reads the login and password of machine from a netrc file.
// A default entry is used when the machine has no entry of its own.
func AuthFromNetrc(machine, path string) (Credentials, error) {
	if path == "" {
		path = DefaultNetrcPath
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Credentials{}, eris.Wrap(err, "netrc: resolve home directory")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	m, err := netrc.FindMachine(path, machine)
	if err != nil {
		return Credentials{}, eris.Wrapf(err, "netrc: read %s", path)
	}
	if m == nil {
		return Credentials{}, eris.Errorf("netrc: no entry for machine %q in %s", machine, path)
	}
	return Credentials{User: m.Login, Password: m.Password}, nil
}
