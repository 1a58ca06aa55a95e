package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `timezone: UTC
groups:
  - name: LAB 1
    kind: discussion
    time: "08:15"
    latitude: 10.5
    longitude: -20.25
    weekdays: [mon, Wednesday]
  - name: LEC
    kind: lecture
    time: "17:00"
    latitude: 0
    longitude: 0
`

func TestDefaultTable(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)
	assert.Len(t, table.Groups, 5)
	assert.Equal(t, "America/New_York", table.Location().String())

	g, ok := table.Lookup("CS 412 C1")
	require.True(t, ok)
	assert.Equal(t, KindDiscussion, g.Kind)
	assert.Equal(t, 42.349, g.Latitude)
	assert.Equal(t, -71.104, g.Longitude)

	assert.True(t, table.HasGroup("CS 412 A1", KindLecture))
	assert.False(t, table.HasGroup("CS 412 A1", KindDiscussion))
	assert.False(t, table.HasGroup("CS 999", KindLecture))
}

func TestResolve(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	slot, err := table.Resolve("CS 412 C1", "2025-12-02")
	require.NoError(t, err)
	want := time.Date(2025, time.December, 2, 12, 20, 0, 0, table.Location())
	assert.True(t, slot.ScheduledAt.Equal(want), "got %s", slot.ScheduledAt)
	assert.Equal(t, "CS 412 C1", slot.Group.Name)

	_, err = table.Resolve("CS 412 Z9", "2025-12-02")
	assert.ErrorIs(t, err, ErrUnknownGroup)

	_, err = table.Resolve("CS 412 C1", "12/02/2025")
	assert.ErrorIs(t, err, ErrBadDate)
}

func TestResolveWeekdays(t *testing.T) {
	table, err := Parse([]byte(sampleTable))
	require.NoError(t, err)

	// 2025-12-01 is a Monday.
	slot, err := table.Resolve("LAB 1", "2025-12-01")
	require.NoError(t, err)
	assert.Equal(t, 8, slot.ScheduledAt.Hour())
	assert.Equal(t, 15, slot.ScheduledAt.Minute())

	_, err = table.Resolve("LAB 1", "2025-12-02")
	assert.ErrorIs(t, err, ErrWrongWeekday)

	_, err = table.Resolve("LEC", "2025-12-02")
	assert.NoError(t, err)
}

func TestParseRejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"empty":     ``,
		"bad kind":  "groups:\n  - {name: A, kind: seminar, time: \"09:00\", latitude: 1, longitude: 1}\n",
		"bad time":  "groups:\n  - {name: A, kind: lecture, time: \"9am\", latitude: 1, longitude: 1}\n",
		"duplicate": "groups:\n  - {name: A, kind: lecture, time: \"09:00\"}\n  - {name: A, kind: lecture, time: \"10:00\"}\n",
		"latitude":  "groups:\n  - {name: A, kind: lecture, time: \"09:00\", latitude: 91, longitude: 1}\n",
		"weekday":   "groups:\n  - {name: A, kind: lecture, time: \"09:00\", weekdays: [someday]}\n",
		"timezone":  "timezone: Mars/Olympus\ngroups:\n  - {name: A, kind: lecture, time: \"09:00\"}\n",
		"no name":   "groups:\n  - {kind: lecture, time: \"09:00\"}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTable), 0o644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, table.Groups, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	table, err = Load("")
	require.NoError(t, err)
	assert.Len(t, table.Groups, 5)
}
