package hub

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPortAllocationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	// Each successful run allocates real pseudo-terminals, so keep the
	// iteration count modest.
	parameters.MinSuccessfulTests = 25

	properties := gopter.NewProperties(parameters)

	properties.Property("opening yields exactly count distinct device paths", prop.ForAll(
		func(count int) bool {
			h, err := New(Config{Ports: count})
			if err != nil {
				return false
			}
			defer h.Close()

			if err := h.Open(); err != nil {
				return false
			}
			ports, err := h.Ports()
			if err != nil || len(ports) != count {
				return false
			}

			seen := make(map[string]struct{}, count)
			for _, p := range ports {
				seen[p] = struct{}{}
			}
			return len(seen) == count
		},
		gen.IntRange(1, 8),
	))

	properties.Property("non-positive counts are rejected before allocation", prop.ForAll(
		func(count int) bool {
			_, err := New(Config{Ports: count})
			return errors.Is(err, ErrInvalidPortCount)
		},
		gen.IntRange(-8, 0),
	))

	properties.TestingRun(t)
}
