//go:build linux

package kernelmap

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxPerfOpener opens hardware perf-event counters via PerfEventOpen, the
// same call used by other_examples' avx collector and parca-agent profiler
// (PERF_TYPE_HARDWARE, one fd per CPU, disabled=false so the counter starts
// running immediately).
type linuxPerfOpener struct{}

// NewLinuxPerfOpener returns the real, syscall-backed perfOpener.
func NewLinuxPerfOpener() perfOpener { return linuxPerfOpener{} }

func (linuxPerfOpener) open(cpu int, ev Event) (perfCounter, error) {
	attr := unix.PerfEventAttr{
		Type:   uint32(ev.Type),
		Config: ev.Config,
		Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
	}
	fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("kernelmap: perf_event_open cpu=%d: %w", cpu, err)
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.PERF_EVENT_IOC_ENABLE, 0); errno != 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("kernelmap: enable perf event cpu=%d: %w", cpu, errno)
	}
	return &linuxPerfCounter{perfFd: fd}, nil
}

type linuxPerfCounter struct {
	perfFd int
}

func (c *linuxPerfCounter) read() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(c.perfFd, buf[:])
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, fmt.Errorf("kernelmap: short perf counter read (%d bytes)", n)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (c *linuxPerfCounter) fd() int { return c.perfFd }

func (c *linuxPerfCounter) close() error { return unix.Close(c.perfFd) }
