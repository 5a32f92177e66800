package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/gt"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadSchedulerFile(t *testing.T) {
	path := writeFile(t, `
target_retention: 0.85
default_lambda: 0.2
candidate_intervals: [600, 86400]
window: 20
retrain_schedule: "0 3 * * *"
`)

	f, err := readSchedulerFile(path)
	gt.NoError(t, err)
	gt.Equal(t, *f.TargetRetention, 0.85)
	gt.Equal(t, *f.DefaultLambda, 0.2)
	gt.A(t, f.CandidateIntervals).Length(2)
	gt.Equal(t, *f.Window, 20)
	gt.Equal(t, f.RetrainSchedule, "0 3 * * *")
	gt.True(t, f.MinLambda == nil)

	// defaults plus the online and window configs
	gt.A(t, f.options()).Length(5)
}

func TestReadSchedulerFileEmptyPath(t *testing.T) {
	f, err := readSchedulerFile("")
	gt.NoError(t, err)
	gt.True(t, f.TargetRetention == nil)
	gt.A(t, f.options()).Length(2)
}

func TestReadSchedulerFileInvalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "target above one", body: "target_retention: 1.5\n"},
		{name: "target zero", body: "target_retention: 0\n"},
		{name: "negative lambda", body: "default_lambda: -1\n"},
		{name: "min above max", body: "min_lambda: 0.5\nmax_lambda: 0.2\n"},
		{name: "min above one", body: "min_lambda: 2\n"},
		{name: "zero max", body: "max_lambda: 0\n"},
		{name: "negative min", body: "min_lambda: -0.1\n"},
		{name: "non-positive candidate", body: "candidate_intervals: [600, 0]\n"},
		{name: "malformed yaml", body: "target_retention: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readSchedulerFile(writeFile(t, tc.body))
			gt.Error(t, err)
		})
	}
}

func TestReadSchedulerFileLambdaBounds(t *testing.T) {
	f, err := readSchedulerFile(writeFile(t, "min_lambda: 0.01\nmax_lambda: 1\n"))
	gt.NoError(t, err)
	gt.Equal(t, *f.MinLambda, 0.01)
	gt.Equal(t, *f.MaxLambda, 1.0)

	_, err = readSchedulerFile(writeFile(t, "min_lambda: 2\n"))
	gt.True(t, errors.Is(err, model.ErrInvalidLambda))
}

func TestReadSchedulerFileMissing(t *testing.T) {
	_, err := readSchedulerFile(filepath.Join(t.TempDir(), "missing.yaml"))
	gt.Error(t, err)
}

func TestParseIntervals(t *testing.T) {
	got, err := parseIntervals([]string{"600,3600", " 86400 ", ""})
	gt.NoError(t, err)
	gt.Equal(t, got, []float64{600, 3600, 86400})

	_, err = parseIntervals([]string{"600,abc"})
	gt.Error(t, err)

	_, err = parseIntervals([]string{"-5"})
	gt.Error(t, err)

	got, err = parseIntervals(nil)
	gt.NoError(t, err)
	gt.A(t, got).Length(0)
}
