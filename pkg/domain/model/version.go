package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/m-mizutani/goerr/v2"
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Version is an immutable MAJOR.MINOR.PATCH triple. Increment returns a new
// value; fields are never mutated in place.
type Version struct {
	Major uint64
	Minor uint64
	Patch uint64
}

// ParseVersion strictly parses "X.Y.Z". Prefixes ("v1.2.3"), missing or extra
// components and pre-release/build suffixes are rejected.
func ParseVersion(text string) (Version, error) {
	if !versionPattern.MatchString(text) {
		return Version{}, goerr.New("invalid version format",
			goerr.V("version", text),
			goerr.V("expected", "MAJOR.MINOR.PATCH"),
			goerr.T(ErrTagInvalidVersion))
	}

	parts := strings.Split(text, ".")
	nums := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, goerr.Wrap(err, "invalid version format",
				goerr.V("version", text),
				goerr.T(ErrTagInvalidVersion))
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// ParseTag parses a release tag of the form "vX.Y.Z".
func ParseTag(tag string) (Version, error) {
	if !strings.HasPrefix(tag, "v") {
		return Version{}, goerr.New("release tag must start with 'v'",
			goerr.V("tag", tag),
			goerr.T(ErrTagInvalidVersion))
	}
	return ParseVersion(strings.TrimPrefix(tag, "v"))
}

// MustParseVersion is ParseVersion for constants; it panics on bad input.
func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns "MAJOR.MINOR.PATCH".
func (v Version) String() string {
	return strconv.FormatUint(v.Major, 10) + "." +
		strconv.FormatUint(v.Minor, 10) + "." +
		strconv.FormatUint(v.Patch, 10)
}

// Tag returns the release tag name for the version, e.g. "v2.3.0".
func (v Version) Tag() string {
	return "v" + v.String()
}

// Increment returns the next version for the given part.
func (v Version) Increment(part VersionPart) Version {
	switch part {
	case PartMajor:
		return Version{Major: v.Major + 1}
	case PartMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1}
	default:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or greater than other.
func (v Version) Compare(other Version) int {
	a := semver.New(v.Major, v.Minor, v.Patch, "", "")
	b := semver.New(other.Major, other.Minor, other.Patch, "", "")
	return a.Compare(b)
}

// VersionPart selects which component Increment bumps.
type VersionPart string

const (
	PartPatch VersionPart = "patch"
	PartMinor VersionPart = "minor"
	PartMajor VersionPart = "major"
)

// Bump is the increment selected for a release run. BumpCustom means an
// explicit version is supplied by the operator.
type Bump string

const (
	BumpPatch  Bump = "patch"
	BumpMinor  Bump = "minor"
	BumpMajor  Bump = "major"
	BumpCustom Bump = "custom"
)

// ParseBump validates a bump name.
func ParseBump(s string) (Bump, error) {
	switch b := Bump(s); b {
	case BumpPatch, BumpMinor, BumpMajor, BumpCustom:
		return b, nil
	default:
		return "", goerr.New("unknown version bump",
			goerr.V("bump", s),
			goerr.V("allowed", fmt.Sprintf("%s|%s|%s|%s", BumpPatch, BumpMinor, BumpMajor, BumpCustom)),
			goerr.T(ErrTagPrecondition))
	}
}

// NextVersion computes the candidate version for a bump. custom must be a
// strictly valid version when b is BumpCustom and is ignored otherwise.
func NextVersion(current Version, b Bump, custom string) (Version, error) {
	switch b {
	case BumpMajor:
		return current.Increment(PartMajor), nil
	case BumpMinor:
		return current.Increment(PartMinor), nil
	case BumpPatch:
		return current.Increment(PartPatch), nil
	case BumpCustom:
		return ParseVersion(custom)
	default:
		return Version{}, goerr.New("unknown version bump", goerr.V("bump", b), goerr.T(ErrTagPrecondition))
	}
}
