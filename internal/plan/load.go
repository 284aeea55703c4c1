package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNothingToDo marks an explicit empty plan: a well-formed response that
// contains no work. Distinct from a malformed or unrecognized document.
var ErrNothingToDo = errors.New("plan is explicitly empty: nothing to do")

// Parse decodes a plan document. Accepted shapes:
//
//	[ [ {..step..}, ... ], ... ]          bare array of stages
//	{ "plan": [ [ {..step..}, ... ] ] }   wrapped object
//
// An explicit empty array yields ErrNothingToDo.
func Parse(data []byte) (Plan, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty plan document")
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err == nil {
		if len(p) == 0 {
			return nil, ErrNothingToDo
		}
		return p, nil
	}

	var wrap struct {
		Plan *Plan `json:"plan"`
	}
	if err := json.Unmarshal(data, &wrap); err == nil && wrap.Plan != nil {
		if len(*wrap.Plan) == 0 {
			return nil, ErrNothingToDo
		}
		return *wrap.Plan, nil
	}

	return nil, fmt.Errorf("unrecognized plan document")
}

// Load reads and decodes a plan file.
func Load(path string) (Plan, error) {
	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	p, err := Parse(data)
	if err != nil {
		if errors.Is(err, ErrNothingToDo) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", clean, err)
	}
	return p, nil
}
