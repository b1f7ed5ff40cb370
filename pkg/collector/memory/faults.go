package memory

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procReadFile allows tests to stub reading /proc/vmstat.
var procReadFile = os.ReadFile

// FaultReader reads the system-wide page-fault counter.
type FaultReader struct {
	path string
}

// NewFaultReader reads vmstat below the proc filesystem mounted at procRoot.
func NewFaultReader(procRoot string) *FaultReader {
	return &FaultReader{path: filepath.Join(procRoot, "vmstat")}
}

// PageFaults returns the cumulative pgfault counter.
func (r *FaultReader) PageFaults() (uint64, error) {
	data, err := procReadFile(r.path)
	if err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "pgfault ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("unexpected format for pgfault")
		}
		return strconv.ParseUint(fields[1], 10, 64)
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("pgfault not found in %s", r.path)
}
