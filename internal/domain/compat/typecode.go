// Package compat implements the compatibility scoring engine: the fixed
// type compatibility table, the reading similarity curves and the weighted
// composite score built from them.
package compat

import (
	"fmt"
	"strings"
)

// TypeCode is one of the 16 four-letter personality type codes.
type TypeCode string

// Canonical type codes.
const (
	ISTJ TypeCode = "ISTJ"
	ISFJ TypeCode = "ISFJ"
	INFJ TypeCode = "INFJ"
	INTJ TypeCode = "INTJ"
	ISTP TypeCode = "ISTP"
	ISFP TypeCode = "ISFP"
	INFP TypeCode = "INFP"
	INTP TypeCode = "INTP"
	ESTP TypeCode = "ESTP"
	ESFP TypeCode = "ESFP"
	ENFP TypeCode = "ENFP"
	ENTP TypeCode = "ENTP"
	ESTJ TypeCode = "ESTJ"
	ESFJ TypeCode = "ESFJ"
	ENFJ TypeCode = "ENFJ"
	ENTJ TypeCode = "ENTJ"
)

const numTypes = 16

// typeOrder is the display order used by charts and listings.
var typeOrder = [numTypes]TypeCode{
	ISTJ, ISFJ, INFJ, INTJ,
	ISTP, ISFP, INFP, INTP,
	ESTP, ESFP, ENFP, ENTP,
	ESTJ, ESFJ, ENFJ, ENTJ,
}

var typeIndex = func() map[TypeCode]int {
	m := make(map[TypeCode]int, numTypes)
	for i, t := range typeOrder {
		m[t] = i
	}
	return m
}()

// TypeCodes returns the 16 codes in display order.
func TypeCodes() []TypeCode {
	out := make([]TypeCode, numTypes)
	copy(out, typeOrder[:])
	return out
}

// ParseTypeCode normalizes s (trim + upper-case) and validates it.
func ParseTypeCode(s string) (TypeCode, error) {
	t := TypeCode(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// Valid reports whether t is one of the canonical codes.
func (t TypeCode) Valid() bool {
	_, ok := typeIndex[t]
	return ok
}

func (t TypeCode) String() string { return string(t) }
