//go:build unix

package db

import (
	"os"
	"syscall"
)

func lockFileNB(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func unlockFile(f *os.File) {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}

// holderAlive reports whether pid still exists. Signal 0 probes without
// delivering anything; FindProcess alone always succeeds on unix.
func holderAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	return err == nil && p.Signal(syscall.Signal(0)) == nil
}
