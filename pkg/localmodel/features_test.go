package localmodel_test

import (
	"testing"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/localmodel"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestBuildSamples(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []*model.ReviewOutcomeEvent{
		// out of order on purpose
		{LearnerID: "a", ItemID: "x", Correctness: 0, Timestamp: base.Add(3 * 24 * time.Hour)},
		{LearnerID: "a", ItemID: "x", Correctness: 1, Timestamp: base},
		{LearnerID: "a", ItemID: "x", Correctness: 1, Timestamp: base.Add(24 * time.Hour)},
		{LearnerID: "b", ItemID: "x", Correctness: 1, Timestamp: base},
	}

	samples := localmodel.BuildSamples(events)
	gt.A(t, samples).Length(4)

	// learner a, first review: no history
	gt.Equal(t, samples[0].NPrev, 0.0)
	gt.Equal(t, samples[0].TimeSincePrev, 0.0)
	gt.Equal(t, samples[0].Label, 1.0)

	// second review one day later
	gt.Equal(t, samples[1].NPrev, 1.0)
	gt.Equal(t, samples[1].TimeSincePrev, 86400.0)
	gt.Equal(t, samples[1].LastInterval, 0.0)

	// third review two days after the second
	gt.Equal(t, samples[2].NPrev, 2.0)
	gt.Equal(t, samples[2].TimeSincePrev, 2*86400.0)
	gt.Equal(t, samples[2].LastInterval, 86400.0)
	gt.Equal(t, samples[2].AvgPrevInterval, 86400.0)
	gt.Equal(t, samples[2].Label, 0.0)

	// learner b has an independent timeline
	gt.Equal(t, samples[3].NPrev, 0.0)
}

func TestBuildSamplesPrefersRecordedGap(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []*model.ReviewOutcomeEvent{
		{LearnerID: "a", ItemID: "x", Correctness: 1, Timestamp: base},
		{LearnerID: "a", ItemID: "x", Correctness: 1, Timestamp: base.Add(time.Hour), TimeSinceLastReviewSec: 7200},
	}
	samples := localmodel.BuildSamples(events)
	gt.Equal(t, samples[1].TimeSincePrev, 7200.0)
}

func TestNextFeatures(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := []*model.ReviewOutcomeEvent{
		{Timestamp: base},
		{Timestamp: base.Add(24 * time.Hour)},
		{Timestamp: base.Add(72 * time.Hour)},
	}
	now := base.Add(73 * time.Hour)

	f := localmodel.NextFeatures(history, now, 3600)
	gt.Equal(t, f.NPrev, 3.0)
	gt.Equal(t, f.LastInterval, 2*86400.0)
	gt.Equal(t, f.AvgPrevInterval, 1.5*86400.0)
	gt.Equal(t, f.TimeSincePrev, 7200.0)

	empty := localmodel.NextFeatures(nil, now, 600)
	gt.Equal(t, empty.NPrev, 0.0)
	gt.Equal(t, empty.TimeSincePrev, 600.0)
}
