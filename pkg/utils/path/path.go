package path

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const tilde = "~" + string(filepath.Separator)

// return absolute representation of path, with expanding "~" to user's home directory.
//
// args:
//     - pathstring: path to be resolved
// return:
//     - string: resolved filepath
//     - error
func Resolve(pathstring string) (string, error) {
	if strings.HasPrefix(pathstring, tilde) {
		homedir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		pathstring = filepath.Join(homedir, pathstring[2:])
	}
	return filepath.Abs(pathstring)
}

var ErrNotFound = errors.New("file not found in any parent directories")

// SearchUpward looks for a file named fileName in from and then its ancestors,
// and returns the path of the first one found.
//
// If it reaches the filesystem root without finding, ErrNotFound is returned.
func SearchUpward(from string, fileName string) (string, error) {
	dir, err := filepath.Abs(from)
	if err != nil {
		return "", err
	}
	for {
		p := filepath.Join(dir, fileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}
