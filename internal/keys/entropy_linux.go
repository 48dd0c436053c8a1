//go:build linux

package keys

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	randomDevice     = "/dev/random"
	entropyAvailPath = "/proc/sys/kernel/random/entropy_avail"
)

func systemEntropy() (int, error) {
	if f, err := os.Open(randomDevice); err == nil {
		n, ierr := unix.IoctlGetInt(int(f.Fd()), unix.RNDGETENTCNT)
		f.Close()
		if ierr == nil {
			return n, nil
		}
	}

	b, err := os.ReadFile(entropyAvailPath)
	if err != nil {
		return 0, fmt.Errorf("read entropy estimate: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse entropy estimate: %w", err)
	}
	return n, nil
}
