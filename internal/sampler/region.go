package sampler

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Region slot names.
const (
	RegionText = "text"
	RegionTime = "time"
)

// Region is a rectangle of interest in frame pixel coordinates.
type Region struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ParseRegion parses "x,y,w,h".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("region %q must have the form x,y,width,height", s)
	}

	var vals [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		vals[i] = v
	}

	r := Region{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate rejects negative components. Zero width or height is allowed.
func (r Region) Validate() error {
	if r.X < 0 || r.Y < 0 || r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("region %s has negative components", r)
	}
	return nil
}

// Rect returns the region as rows [y, y+h) and columns [x, x+w).
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// Slot is one named region. A nil Region means the whole frame.
type Slot struct {
	Name   string
	Region *Region
}

// Regions is the ordered set of slots recognized on every keyframe.
type Regions []Slot

// NewRegions builds the slot list for a run. The text slot is always
// present; the time slot only when time is non-nil.
func NewRegions(text, time *Region) Regions {
	regions := Regions{{Name: RegionText, Region: text}}
	if time != nil {
		regions = append(regions, Slot{Name: RegionTime, Region: time})
	}
	return regions
}

// Has reports whether a slot with name is configured.
func (rs Regions) Has(name string) bool {
	for _, s := range rs {
		if s.Name == name {
			return true
		}
	}
	return false
}
