// Package anatomy names the paranasal sinus regions and holds the fractional
// layout that places each of them inside a head CT volume.
package anatomy

import (
	"fmt"
	"strings"
)

// Side is the patient side of a paired structure.
type Side int

const (
	Left Side = iota
	Right
)

// NumSides is the number of patient sides.
const NumSides = 2

// Sides lists both sides in report order.
var Sides = [NumSides]Side{Left, Right}

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s Side) MarshalText() ([]byte, error) {
	if s != Left && s != Right {
		return nil, fmt.Errorf("invalid side %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSide parses "left" or "right".
func ParseSide(name string) (Side, error) {
	switch strings.ToLower(name) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return 0, fmt.Errorf("unknown side %q", name)
}

// Sinus is one of the five Lund-Mackay sinus groups.
type Sinus int

// Order follows the Lund-Mackay scoring sheet.
const (
	Maxillary Sinus = iota
	AnteriorEthmoid
	PosteriorEthmoid
	Sphenoid
	Frontal
)

// NumSinuses is the number of scored sinus groups per side.
const NumSinuses = 5

// Sinuses lists every sinus group in scoring order.
var Sinuses = [NumSinuses]Sinus{Maxillary, AnteriorEthmoid, PosteriorEthmoid, Sphenoid, Frontal}

var sinusNames = [NumSinuses]string{"maxillary", "anterior_ethmoid", "posterior_ethmoid", "sphenoid", "frontal"}

func (s Sinus) String() string {
	if s < 0 || int(s) >= NumSinuses {
		return fmt.Sprintf("sinus(%d)", int(s))
	}
	return sinusNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s Sinus) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= NumSinuses {
		return nil, fmt.Errorf("invalid sinus %d", int(s))
	}
	return []byte(s.String()), nil
}

// ParseSinus parses a sinus name such as "anterior_ethmoid".
func ParseSinus(name string) (Sinus, error) {
	for i, n := range sinusNames {
		if n == strings.ToLower(name) {
			return Sinus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sinus %q", name)
}

// Region is one sinus on one side, e.g. the left maxillary sinus.
type Region struct {
	Sinus Sinus
	Side  Side
}

// String renders the region as "<sinus>_<side>".
func (r Region) String() string {
	return r.Sinus.String() + "_" + r.Side.String()
}

// MarshalText implements encoding.TextMarshaler so regions work as JSON map keys.
func (r Region) MarshalText() ([]byte, error) {
	if _, err := r.Sinus.MarshalText(); err != nil {
		return nil, err
	}
	if _, err := r.Side.MarshalText(); err != nil {
		return nil, err
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Region) UnmarshalText(text []byte) error {
	parsed, err := ParseRegion(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRegion parses "<sinus>_<side>".
func ParseRegion(name string) (Region, error) {
	cut := strings.LastIndex(name, "_")
	if cut <= 0 {
		return Region{}, fmt.Errorf("malformed region %q", name)
	}
	sinus, err := ParseSinus(name[:cut])
	if err != nil {
		return Region{}, err
	}
	side, err := ParseSide(name[cut+1:])
	if err != nil {
		return Region{}, err
	}
	return Region{Sinus: sinus, Side: side}, nil
}

// AllRegions returns the ten scored regions, sinus-major and left before right.
func AllRegions() []Region {
	regions := make([]Region, 0, NumSinuses*NumSides)
	for _, sinus := range Sinuses {
		for _, side := range Sides {
			regions = append(regions, Region{Sinus: sinus, Side: side})
		}
	}
	return regions
}
