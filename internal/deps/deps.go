package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external binary and what clipper uses it for.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of looking a Requirement up. Path is the resolved
// executable when Available.
type Status struct {
	Requirement
	Available bool
	Path      string
	Detail    string
}

// Lookup resolves one requirement on PATH.
func Lookup(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// CheckBinaries looks up every requirement, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Lookup(req))
	}
	return results
}
