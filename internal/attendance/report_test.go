package attendance

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.student(t, "Ana", "Bell", "CS 412 A1", "CS 412 C1")
	ben := f.student(t, "Ben", "Cole, Jr.", "CS 412 A1", "CS 412 C2")
	f.instructor(t)

	lec := f.session(t, "CS 412 A1", "2025-12-02", "1")
	f.session(t, "CS 412 A1", "2025-12-04", "1")
	f.session(t, "CS 412 A1", "2025-12-09", "1")
	dis := f.session(t, "CS 412 C1", "2025-12-02", "1")
	f.session(t, "CS 412 C2", "2025-12-02", "1")

	f.attend(t, ana, lec, StatusAttended)
	f.attend(t, ana, dis, StatusAttended)
	f.attend(t, ben, lec, StatusSubmitted)

	rows, err := f.svc.Report(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ReportRow{Name: "Ana Bell", Lecture: 33.33, Discussion: 100, Total: 50}, rows[0])
	assert.Equal(t, ReportRow{Name: "Ben Cole, Jr."}, rows[1])

	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student Name,Lecture Participation,Discussion Participation,Total Participation", lines[0])
	assert.Equal(t, "Ana Bell,33.33,100.00,50.00", lines[1])
	assert.Equal(t, `"Ben Cole, Jr.",0.00,0.00,0.00`, lines[2])

	parsed, err := ReadReportCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, parsed)
}

func TestReportCSVEscapesFormulas(t *testing.T) {
	rows := []ReportRow{
		{Name: "=HYPERLINK(\"http://x\") Doe", Lecture: 50},
		{Name: "+1 Plus"},
		{Name: "-Dash", Total: 10},
		{Name: "@Sum"},
		{Name: "O'Neil"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, `"'=HYPERLINK(""http://x"") Doe",50.00,0.00,0.00`, lines[1])
	assert.Equal(t, "'+1 Plus,0.00,0.00,0.00", lines[2])
	assert.Equal(t, "'-Dash,0.00,0.00,10.00", lines[3])
	assert.Equal(t, "'@Sum,0.00,0.00,0.00", lines[4])
	assert.Equal(t, "O'Neil,0.00,0.00,0.00", lines[5])

	parsed, err := ReadReportCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, parsed)
}

func TestReadReportCSVRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"header":     "Name,Lecture,Discussion,Total\n",
		"not number": "Student Name,Lecture Participation,Discussion Participation,Total Participation\nAna,abc,0,0\n",
		"columns":    "Student Name,Lecture Participation,Discussion Participation,Total Participation\nAna,1,2\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadReportCSV(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, nil))
	rows, err := ReadReportCSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
