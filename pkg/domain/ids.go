package domain

import (
	"strconv"
	"strings"
	"unicode"

	dErrors "skillproof/pkg/domain-errors"
)

// MaxPrincipalLength bounds the opaque identity string accepted at trust boundaries.
const MaxPrincipalLength = 128

// Principal is an opaque, pre-authenticated caller identity. The ledger only
// compares principals for equality.
type Principal string

// ParsePrincipal validates an identity received from outside the process.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(s) > MaxPrincipalLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is too long")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == unicode.ReplacementChar {
			return "", dErrors.New(dErrors.CodeInvalidInput, "principal contains invalid characters")
		}
	}
	return Principal(s), nil
}

func (p Principal) String() string { return string(p) }

// IsNil returns true if the principal is empty.
func (p Principal) IsNil() bool { return p == "" }

// Height is the monotonically increasing logical time assigned to each block.
type Height uint64

func (h Height) String() string { return strconv.FormatUint(uint64(h), 10) }

// Next returns the following height.
func (h Height) Next() Height { return h + 1 }

// SkillID is the global, sequential skill identifier. Zero is never assigned.
type SkillID uint64

// ParseSkillID parses a decimal skill id. Zero is well formed; no skill
// is ever assigned it.
func ParseSkillID(s string) (SkillID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "skill id is required")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid skill id")
	}
	return SkillID(n), nil
}

func (id SkillID) String() string { return strconv.FormatUint(uint64(id), 10) }

func (id SkillID) IsNil() bool { return id == 0 }

// CategoryID identifies an entry of the closed skill category table.
type CategoryID uint32

func (c CategoryID) String() string { return strconv.FormatUint(uint64(c), 10) }
