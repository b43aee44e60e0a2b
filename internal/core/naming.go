package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ModelName is the storage key of a payload: <granularity>:<scope>:lags=<L>, where
// scope is "all" or "account-<id>".
func ModelName(g Granularity, accountID *int64, lags int) string {
	scope := "all"
	if accountID != nil {
		scope = fmt.Sprintf("account-%d", *accountID)
	}
	return fmt.Sprintf("%s:%s:lags=%d", g, scope, lags)
}

// ParseModelName is the inverse of ModelName.
func ParseModelName(name string) (Granularity, *int64, int, error) {
	parts := strings.Split(name, ":")
	if len(parts) != 3 {
		return "", nil, 0, fmt.Errorf("malformed model name %q", name)
	}
	g := Granularity(parts[0])
	if !g.Valid() {
		return "", nil, 0, fmt.Errorf("model name %q: %w", name, ErrInvalidGranularity)
	}

	var accountID *int64
	switch scope := parts[1]; {
	case scope == "all":
	case strings.HasPrefix(scope, "account-"):
		id, err := strconv.ParseInt(strings.TrimPrefix(scope, "account-"), 10, 64)
		if err != nil {
			return "", nil, 0, fmt.Errorf("model name %q: bad account id: %w", name, err)
		}
		accountID = &id
	default:
		return "", nil, 0, fmt.Errorf("model name %q: unknown scope %q", name, scope)
	}

	raw, ok := strings.CutPrefix(parts[2], "lags=")
	if !ok {
		return "", nil, 0, fmt.Errorf("model name %q: missing lags", name)
	}
	lags, err := strconv.Atoi(raw)
	if err != nil || lags < 0 {
		return "", nil, 0, fmt.Errorf("model name %q: %w", name, ErrInvalidLags)
	}
	return g, accountID, lags, nil
}
