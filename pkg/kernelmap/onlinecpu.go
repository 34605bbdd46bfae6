package kernelmap

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// OnlineCPUs parses /sys/devices/system/cpu/online (a range list like
// "0-3,6,8-9") into a sorted slice of online CPU ids. It is re-read at BPF
// sampler load time rather than cached statically, so a CPU hotplugged
// offline between process start and sampler load is reflected (SPEC_FULL
// §11).
func OnlineCPUs() ([]int, error) {
	f, err := os.Open("/sys/devices/system/cpu/online")
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil, sc.Err()
	}
	return parseCPURange(strings.TrimSpace(sc.Text()))
}

func parseCPURange(s string) ([]int, error) {
	var out []int
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, err := strconv.Atoi(part[:i])
			if err != nil {
				return nil, err
			}
			hi, err := strconv.Atoi(part[i+1:])
			if err != nil {
				return nil, err
			}
			for c := lo; c <= hi; c++ {
				out = append(out, c)
			}
		} else {
			c, err := strconv.Atoi(part)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}
