package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a dotted numeric version with an optional trailing qualifier,
// e.g. "6.8.1-SNAPSHOT". Ordering only looks at the numeric components.
type Version struct {
	parts     []int
	qualifier string
}

var versionRegex = regexp.MustCompile(`^v?([0-9]+(?:\.[0-9]+)*)(?:[-.+_~](.*))?$`)

// Parse reads a version string. Surrounding whitespace is ignored.
func Parse(raw string) (Version, error) {
	text := strings.TrimSpace(raw)
	match := versionRegex.FindStringSubmatch(text)
	if match == nil {
		return Version{}, fmt.Errorf("invalid version %q", raw)
	}
	fields := strings.Split(match[1], ".")
	parts := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", raw, err)
		}
		parts = append(parts, n)
	}
	return Version{parts: parts, qualifier: match[2]}, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// New builds a version from its numeric components.
func New(parts ...int) Version {
	return Version{parts: append([]int(nil), parts...)}
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return len(v.parts) == 0
}

// Parts returns a copy of the numeric components.
func (v Version) Parts() []int {
	return append([]int(nil), v.parts...)
}

// Qualifier returns the text after the numeric components, if any.
func (v Version) Qualifier() string {
	return v.qualifier
}

// Compare orders versions lexicographically over their numeric components.
// A version that is a strict prefix of another sorts first.
func (v Version) Compare(other Version) int {
	for i := 0; i < len(v.parts) && i < len(other.parts); i++ {
		switch {
		case v.parts[i] < other.parts[i]:
			return -1
		case v.parts[i] > other.parts[i]:
			return 1
		}
	}
	switch {
	case len(v.parts) < len(other.parts):
		return -1
	case len(v.parts) > len(other.parts):
		return 1
	}
	return 0
}

// Equal reports whether both versions have identical numeric components.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// AtLeast parses minimum and reports whether v >= minimum.
func (v Version) AtLeast(minimum string) bool {
	m, err := Parse(minimum)
	if err != nil {
		return false
	}
	return v.Compare(m) >= 0
}

// Satisfies checks v against a semver constraint such as ">= 6.0, < 7".
// Only the first three numeric components take part; missing ones are zero.
func (v Version) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	var triple [3]uint64
	for i := 0; i < len(triple) && i < len(v.parts); i++ {
		triple[i] = uint64(v.parts[i])
	}
	return c.Check(semver.New(triple[0], triple[1], triple[2], "", "")), nil
}

func (v Version) String() string {
	if len(v.parts) == 0 {
		return ""
	}
	fields := make([]string, len(v.parts))
	for i, p := range v.parts {
		fields[i] = strconv.Itoa(p)
	}
	out := strings.Join(fields, ".")
	if v.qualifier != "" {
		out += "-" + v.qualifier
	}
	return out
}

// MarshalText implements encoding.TextMarshaler so versions persist as strings.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
