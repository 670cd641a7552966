package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	ps "github.com/mitchellh/go-ps"
)

// IsRunningInOtherProcess returns true if the pid file at pathToFile
// contains the pid of another process that is still alive.
func IsRunningInOtherProcess(pathToFile string) bool {
	if FileExists(pathToFile) {
		pid := ReadPidFile(pathToFile)
		return pid != 0 && pid != os.Getpid() && ProcessIsRunning(pid)
	}
	return false
}

// ReadPidFile returns the pid from the speficied file.
func ReadPidFile(pathToFile string) int {
	if data, err := os.ReadFile(pathToFile); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			return pid
		}
	}
	return 0
}

// WritePidFile writes this process' pid to the specified file.
func WritePidFile(pathToFile string) error {
	pidStr := strconv.Itoa(os.Getpid())
	return os.WriteFile(pathToFile, []byte(pidStr), 0664)
}

// ClaimPidFile writes our pid to pathToFile unless a live process
// already holds it. Workers call this at start-up so that only one
// archive worker runs per pid file.
func ClaimPidFile(pathToFile string) error {
	if IsRunningInOtherProcess(pathToFile) {
		return fmt.Errorf("Pid file %s is held by running process %d",
			pathToFile, ReadPidFile(pathToFile))
	}
	return WritePidFile(pathToFile)
}

// DeletePidFile deletes the specified pid file, if it looks safe to delete.
func DeletePidFile(pathToFile string) error {
	if LooksSafeToDelete(pathToFile, 12, 2) {
		return os.Remove(pathToFile)
	}
	return fmt.Errorf("Pid file %s does not look safe to delete", pathToFile)
}

// AgeOfPidFile returns the duration of time that has passed since
// the pid file was last modified.
func AgeOfPidFile(pathToFile string) (time.Duration, error) {
	fileStat, err := os.Stat(pathToFile)
	if err != nil {
		return 0, err
	}
	return time.Since(fileStat.ModTime()), nil
}

// ProcessIsRunning returns true if the process with pid is running.
// This uses go-ps internally because golang's os.FindProcess always
// returns a process on *nix, even when no process with that pid is
// running.
func ProcessIsRunning(pid int) bool {
	proc, _ := ps.FindProcess(pid)
	return proc != nil
}
