// Package system holds the small closed enumerations shared by every
// route variant and daemon: SourceCode, RouteStatus, and instance id
// generation.
package system

import (
	"strings"

	"github.com/google/uuid"
)

// SourceCode identifies the origin protocol of a route. It is a closed
// enumeration persisted as its string value.
type SourceCode string

const (
	SourceStatic SourceCode = "STATIC"
	SourceRIP1   SourceCode = "RIP1"
	SourceOSPF   SourceCode = "OSPF"
	SourceBGP    SourceCode = "BGP"
	SourceSLA    SourceCode = "SLA"
)

// Valid reports whether s is one of the closed SourceCode values.
func (s SourceCode) Valid() bool {
	switch s {
	case SourceStatic, SourceRIP1, SourceOSPF, SourceBGP, SourceSLA:
		return true
	default:
		return false
	}
}

func (s SourceCode) String() string { return string(s) }

// RouteStatus is the liveness state of a route.
type RouteStatus string

const (
	StatusUp      RouteStatus = "up"
	StatusDown    RouteStatus = "down"
	StatusUnknown RouteStatus = "unknown"
)

func (s RouteStatus) Valid() bool {
	switch s {
	case StatusUp, StatusDown, StatusUnknown:
		return true
	default:
		return false
	}
}

func (s RouteStatus) String() string { return string(s) }

// NewInstanceID returns a random 8-character alphanumeric instance id.
//
// The literal string "latest" is reserved by the instance registry to mean
// "the most recently created instance" and is never generated here.
func NewInstanceID() string {
	id := strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:8]
}

// LatestInstanceID is the reserved alias resolving to the most recently
// created instance of a given daemon kind.
const LatestInstanceID = "latest"
