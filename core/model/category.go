package model

import (
	"fmt"
	"strings"
)

// Category is the charging speed class of a pile or request.
type Category int

const (
	Fast Category = iota
	Slow
)

// ParseCategory maps the wire codes "F" and "T" used in queue numbers.
func ParseCategory(code string) (Category, error) {
	switch code {
	case "F":
		return Fast, nil
	case "T":
		return Slow, nil
	default:
		return 0, fmt.Errorf("unknown charge category %q", code)
	}
}

// Prefix returns the queue-number prefix for the category.
func (c Category) Prefix() string {
	if c == Fast {
		return "F"
	}
	return "T"
}

func (c Category) String() string {
	if c == Fast {
		return "fast"
	}
	return "slow"
}

// MarshalJSON encodes the category as its wire code.
func (c Category) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.Prefix() + `"`), nil
}

// UnmarshalJSON decodes "F" or "T".
func (c *Category) UnmarshalJSON(b []byte) error {
	parsed, err := ParseCategory(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// DefaultPowerKW is the rated power used when a pile config omits one.
func (c Category) DefaultPowerKW() float64 {
	if c == Fast {
		return 30
	}
	return 7
}
