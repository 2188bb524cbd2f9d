package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	pserrors "github.com/vnykmshr/pipesim/pkg/common/errors"
)

// ParseError reports a malformed line of a keyword config file.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// Unwrap makes every ParseError match ErrInvalidConfiguration.
func (e *ParseError) Unwrap() error {
	return pserrors.ErrInvalidConfiguration
}

// legacyKeys maps the keywords of the plain config format to setting keys.
var legacyKeys = map[string]string{
	"numStages":           KeyNumStages,
	"numWorkItems":        KeyNumWorkItems,
	"maxPipelineCapacity": KeyMaxPipelineCapacity,
	"baseDelay":           KeyBaseDelay,
	"imbalanceFactor":     KeyImbalanceFactor,
	"skipNoPipeline":      KeySkipNoPipeline,
}

// parseLegacy reads the plain keyword format:
//
//	# comment
//	numStages 4
//	imbalanceFactor 0 5 -3 0
//	skipNoPipeline
//
// Every keyword may appear once. imbalanceFactor takes any number of
// values, skipNoPipeline an optional 0 or 1, the others exactly one integer.
func parseLegacy(name string, r io.Reader) (map[string]interface{}, error) {
	settings := make(map[string]interface{})
	scanner := bufio.NewScanner(r)
	line := 0

	fail := func(format string, args ...interface{}) error {
		return &ParseError{File: name, Line: line, Reason: fmt.Sprintf(format, args...)}
	}

	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		keyword, values := fields[0], fields[1:]
		key, ok := legacyKeys[keyword]
		if !ok {
			return nil, fail("unrecognized configuration option %q", keyword)
		}
		if _, seen := settings[key]; seen {
			return nil, fail("%s is specified for the second time", keyword)
		}

		ints := make([]int, len(values))
		for i, v := range values {
			n, err := strconv.Atoi(v)
			if err != nil {
				if errors.Is(err, strconv.ErrRange) {
					return nil, fail("value %q of %s does not fit inside an integer (token %d)", v, keyword, i+1)
				}
				return nil, fail("non-integer value %q of %s (token %d)", v, keyword, i+1)
			}
			ints[i] = n
		}

		switch key {
		case KeyImbalanceFactor:
			settings[key] = ints
		case KeySkipNoPipeline:
			if len(ints) > 1 {
				return nil, fail("%s takes at most one value", keyword)
			}
			settings[key] = len(ints) == 0 || ints[0] != 0
		default:
			if len(ints) == 0 {
				return nil, fail("nothing follows the %s keyword", keyword)
			}
			if len(ints) > 1 {
				return nil, fail("%s takes a single value, got %d", keyword, len(ints))
			}
			settings[key] = ints[0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return settings, nil
}
