package postgres

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/kleoslabs/kleos/internal/domain"
)

// The engine's amounts are unsigned 64- and 128-bit integers, wider than
// BIGINT allows. They live in NUMERIC columns and cross the driver boundary
// as decimal strings: parameters are passed as strings and cast to ::numeric
// in SQL, selected values are cast to ::text and parsed here.

func u64str(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseU64(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("postgres: parse uint64 %q: %w", s, err)
	}
	return v, nil
}

func u256str(v *uint256.Int) string {
	return v.Dec()
}

func parseU256(s string) (uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("postgres: parse uint256 %q: %w", s, err)
	}
	return *v, nil
}

func itemsToArray(items *[domain.MaxItems]uint256.Int, count uint8) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = items[i].Dec()
	}
	return out
}

func itemsFromArray(values []string) ([domain.MaxItems]uint256.Int, error) {
	var items [domain.MaxItems]uint256.Int
	if len(values) > domain.MaxItems {
		return items, fmt.Errorf("postgres: %d per-item accumulators exceed the %d-item bound", len(values), domain.MaxItems)
	}
	for i, s := range values {
		v, err := parseU256(s)
		if err != nil {
			return items, err
		}
		items[i] = v
	}
	return items, nil
}
