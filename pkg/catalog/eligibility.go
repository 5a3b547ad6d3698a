package catalog

import (
	"fmt"
	"strings"
)

// Shortfall describes one resource axis on which the host falls short of a
// catalog entry's declared minimum.
type Shortfall struct {
	Resource string // "RAM" or "Disk"
	HaveGB   int
	NeedGB   int
}

func (s Shortfall) String() string {
	return fmt.Sprintf("%s: %d/%dGB", s.Resource, s.HaveGB, s.NeedGB)
}

// Evaluation is the result of checking one entry against host capacity.
type Evaluation struct {
	Entry          Entry
	RequiredRAMGB  int
	RequiredDiskGB int
	Shortfalls     []Shortfall
	// UnknownAxes lists resource names whose size strings failed to parse
	// and were treated as no-requirement. Callers should surface these
	// rather than letting an unsupported host pass silently.
	UnknownAxes []string
}

// Eligible reports whether the host meets all declared minimums.
func (e Evaluation) Eligible() bool {
	return len(e.Shortfalls) == 0
}

// Reason returns a human-readable summary of the shortfalls, e.g.
// "RAM: 16/32GB, Disk: 512/1024GB".
func (e Evaluation) Reason() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ", ")
}

// Evaluate checks an entry against the host's RAM and total disk capacity in
// GB. The disk comparison is against total capacity, not available space;
// callers round total capacity up to the marketing boundary first.
func Evaluate(entry Entry, ramGB, diskTotalGB int) Evaluation {
	eval := Evaluation{Entry: entry}

	requiredRAM, err := ParseSize(entry.MinMemory)
	if err != nil {
		eval.UnknownAxes = append(eval.UnknownAxes, "RAM")
	}
	eval.RequiredRAMGB = requiredRAM

	requiredDisk, err := ParseSize(entry.MinDisk)
	if err != nil {
		eval.UnknownAxes = append(eval.UnknownAxes, "Disk")
	}
	eval.RequiredDiskGB = requiredDisk

	if ramGB < requiredRAM {
		eval.Shortfalls = append(eval.Shortfalls, Shortfall{Resource: "RAM", HaveGB: ramGB, NeedGB: requiredRAM})
	}
	if diskTotalGB < requiredDisk {
		eval.Shortfalls = append(eval.Shortfalls, Shortfall{Resource: "Disk", HaveGB: diskTotalGB, NeedGB: requiredDisk})
	}

	return eval
}
