// Package schedule holds the group timetable: for every session group the
// kind of meeting, its time of day and the coordinates of its classroom.
package schedule

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

//go:embed groups.yaml
var defaultTable []byte

// Kind distinguishes lecture groups from discussion groups.
type Kind string

const (
	KindLecture    Kind = "lecture"
	KindDiscussion Kind = "discussion"
)

var (
	ErrUnknownGroup = errors.New("schedule: unknown group")
	ErrBadDate      = errors.New("schedule: bad date")
	ErrWrongWeekday = errors.New("schedule: group does not meet on that weekday")
)

// Group is one row of the timetable.
type Group struct {
	Name      string   `yaml:"name" json:"name"`
	Kind      Kind     `yaml:"kind" json:"kind"`
	Time      string   `yaml:"time" json:"time"`
	Latitude  float64  `yaml:"latitude" json:"latitude"`
	Longitude float64  `yaml:"longitude" json:"longitude"`
	Weekdays  []string `yaml:"weekdays,omitempty" json:"weekdays,omitempty"`

	hour, minute int
	days         map[time.Weekday]bool
}

// Table is the parsed timetable. It is read-only after Parse.
type Table struct {
	Timezone string  `yaml:"timezone"`
	Groups   []Group `yaml:"groups"`

	loc    *time.Location
	byName map[string]int
}

// Slot is a group resolved against a calendar date.
type Slot struct {
	Group       Group
	ScheduledAt time.Time
}

// Default returns the timetable compiled into the binary.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Load reads a timetable from path, or the default one when path is empty.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: read %s: %w", path, err)
	}
	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return table, nil
}

// Parse decodes and validates a YAML timetable.
func Parse(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("schedule: parse: %w", err)
	}
	if err := table.validate(); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return &table, nil
}

func (t *Table) validate() error {
	if t.Timezone == "" {
		t.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", t.Timezone, err)
	}
	t.loc = loc

	if len(t.Groups) == 0 {
		return errors.New("no groups defined")
	}
	t.byName = make(map[string]int, len(t.Groups))
	for i := range t.Groups {
		g := &t.Groups[i]
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" {
			return fmt.Errorf("group %d: name required", i)
		}
		if _, dup := t.byName[g.Name]; dup {
			return fmt.Errorf("group %q defined twice", g.Name)
		}
		if g.Kind != KindLecture && g.Kind != KindDiscussion {
			return fmt.Errorf("group %q: kind must be lecture or discussion", g.Name)
		}
		clock, err := time.Parse("15:04", g.Time)
		if err != nil {
			return fmt.Errorf("group %q: time %q: want HH:MM", g.Name, g.Time)
		}
		g.hour, g.minute = clock.Hour(), clock.Minute()
		if g.Latitude < -90 || g.Latitude > 90 || g.Longitude < -180 || g.Longitude > 180 {
			return fmt.Errorf("group %q: coordinates out of range", g.Name)
		}
		if len(g.Weekdays) > 0 {
			g.days = make(map[time.Weekday]bool, len(g.Weekdays))
			for _, name := range g.Weekdays {
				day, ok := parseWeekday(name)
				if !ok {
					return fmt.Errorf("group %q: unknown weekday %q", g.Name, name)
				}
				g.days[day] = true
			}
		}
		t.byName[g.Name] = i
	}
	return nil
}

// Location is the timezone the times of day are expressed in.
func (t *Table) Location() *time.Location { return t.loc }

// Lookup returns the group with the given name.
func (t *Table) Lookup(name string) (Group, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Group{}, false
	}
	return t.Groups[i], true
}

// HasGroup reports whether name is a group of the given kind.
func (t *Table) HasGroup(name string, kind Kind) bool {
	g, ok := t.Lookup(name)
	return ok && g.Kind == kind
}

// Resolve combines a group's time of day with a YYYY-MM-DD date.
func (t *Table) Resolve(name, date string) (Slot, error) {
	g, ok := t.Lookup(name)
	if !ok {
		return Slot{}, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), t.loc)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %q", ErrBadDate, date)
	}
	if g.days != nil && !g.days[day.Weekday()] {
		return Slot{}, fmt.Errorf("%w: %s on %s", ErrWrongWeekday, g.Name, day.Weekday())
	}
	at := time.Date(day.Year(), day.Month(), day.Day(), g.hour, g.minute, 0, 0, t.loc)
	return Slot{Group: g, ScheduledAt: at}, nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, true
		}
	}
	return 0, false
}
