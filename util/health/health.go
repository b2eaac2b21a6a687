// Package health aggregates dependency checks into a single readiness report.
package health

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Check is one named dependency probe. It follows the same contract as the services' Health methods.
type Check struct {
	Name  string
	Check func(ctx context.Context, checkLiveness bool) (int, string, error)
}

type dependency struct {
	Resource     string              `json:"resource"`
	Status       int                 `json:"status"`
	Error        string              `json:"error,omitempty"`
	Message      string              `json:"message,omitempty"`
	Dependencies jsoniter.RawMessage `json:"dependencies,omitempty"`
}

type report struct {
	Status       int          `json:"status"`
	Dependencies []dependency `json:"dependencies"`
}

// CheckAll runs every check and reports 503 if any of them failed or returned a non-200 status.
// A check whose message is itself a JSON report is nested instead of quoted.
func CheckAll(ctx context.Context, checkLiveness bool, checks []Check) (int, string, error) {
	r := report{
		Status:       http.StatusOK,
		Dependencies: make([]dependency, 0, len(checks)),
	}

	for _, check := range checks {
		status, message, err := check.Check(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			r.Status = http.StatusServiceUnavailable
		}

		dep := dependency{
			Resource: check.Name,
			Status:   status,
		}

		if err != nil {
			dep.Error = err.Error()
		}

		if json.Valid([]byte(message)) && len(message) > 0 && message[0] == '{' {
			dep.Dependencies = jsoniter.RawMessage(message)
		} else {
			dep.Message = message
		}

		r.Dependencies = append(r.Dependencies, dep)
	}

	b, err := json.Marshal(r)
	if err != nil {
		return http.StatusInternalServerError, "", err
	}

	return r.Status, string(b), nil
}
