package daemon

import (
	"errors"
	"io/fs"
	"os"
)

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
