//go:build linux || darwin
// +build linux darwin

package fdlimit

import "golang.org/x/sys/unix"

// Raise tries to lift the NOFILE soft limit up to max, clamped to the hard
// limit, and returns the resulting soft limit.
func Raise(max uint64) (uint64, error) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, err
	}
	if limit.Cur >= max {
		return limit.Cur, nil
	}
	target := max
	if target > limit.Max {
		target = limit.Max
	}
	limit.Cur = target
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, err
	}
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, err
	}
	return limit.Cur, nil
}

// Current retrieves the NOFILE soft limit.
func Current() (uint64, error) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return 0, err
	}
	return limit.Cur, nil
}
