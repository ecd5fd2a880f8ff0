package scanner

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NormalizeTargets trims entries, drops anything that is not an IP literal and removes
// duplicates, keeping the first occurrence order.
func NormalizeTargets(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	targets := make([]string, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if net.ParseIP(entry) == nil {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		targets = append(targets, entry)
	}
	return targets
}

// ParsePortRange parses "start-end" (or a single port) and validates it against max.
func ParsePortRange(spec string, max int) (PortRange, error) {
	spec = strings.TrimSpace(spec)
	parts := strings.Split(spec, "-")
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}
	if len(parts) != 2 {
		return PortRange{}, fmt.Errorf("%w: use startPort-endPort", ErrInvalidPortRange)
	}

	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return PortRange{}, fmt.Errorf("%w: start port is not a number: %s", ErrInvalidPortRange, parts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return PortRange{}, fmt.Errorf("%w: end port is not a number: %s", ErrInvalidPortRange, parts[1])
	}

	r := PortRange{Start: start, End: end}
	if err := r.Validate(max); err != nil {
		return PortRange{}, err
	}
	return r, nil
}
