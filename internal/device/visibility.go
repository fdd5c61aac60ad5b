// Package device provides GPU device-index helpers for descriptor validation.
//
// The deployment descriptor claims physical devices twice: once through the
// GPU device reservation (what the host runtime exposes) and once through
// the CUDA_VISIBLE_DEVICES environment variable (what the inference process
// is allowed to see). This package parses index lists and checks that the
// two claims agree.
package device

import (
	"fmt"
	"strconv"
	"strings"
)

// VisibleDevicesVar is the environment variable restricting which GPU
// indices the inference process may use.
const VisibleDevicesVar = "CUDA_VISIBLE_DEVICES"

// ParseIndexList parses a comma-separated GPU index list such as "0" or
// "0,1,2,3".
//
// Returns:
//   - Slice of index strings in their original order
//   - Error if any entry is not a non-negative integer
func ParseIndexList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	indices := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid device index %q", part)
		}
		indices = append(indices, strconv.Itoa(n))
	}

	return indices, nil
}

// CheckVisibility verifies that every reserved device index is present in
// the visible-device list from the environment.
//
// An instance whose reservation names devices the environment hides would
// start and then fail inside the inference process; catching the mismatch
// at resolve time turns that into a configuration error.
//
// Parameters:
//   - reserved: Device indices from the GPU reservation
//   - visibleEnv: Raw CUDA_VISIBLE_DEVICES value ("" means unrestricted)
//
// Returns:
//   - nil when every reserved index is visible
//   - Error naming the first hidden index otherwise
func CheckVisibility(reserved []string, visibleEnv string) error {
	if strings.TrimSpace(visibleEnv) == "" {
		return nil
	}

	visible, err := ParseIndexList(visibleEnv)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", VisibleDevicesVar, visibleEnv, err)
	}

	visibleSet := make(map[string]struct{}, len(visible))
	for _, idx := range visible {
		visibleSet[idx] = struct{}{}
	}

	for _, idx := range reserved {
		if _, ok := visibleSet[idx]; !ok {
			return fmt.Errorf("reserved device index %s is not listed in %s=%q",
				idx, VisibleDevicesVar, visibleEnv)
		}
	}

	return nil
}
