//go:build !unix

package storage

import (
	"os"
	"time"
)

func setTimes(path string, t time.Time) error {
	return os.Chtimes(path, t, t)
}
