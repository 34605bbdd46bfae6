package kernelmap

// perf_event.h type/config constants needed to describe hardware events.
// Mirrored here (rather than imported from golang.org/x/sys/unix) so Event
// values can be constructed on any GOOS; only perfevent_linux.go needs the
// real unix constants to actually open an fd.
const (
	perfTypeHardware        = 0 // PERF_TYPE_HARDWARE
	perfCountHWCPUCycles    = 0 // PERF_COUNT_HW_CPU_CYCLES
	perfCountHWInstructions = 1 // PERF_COUNT_HW_INSTRUCTIONS
)
