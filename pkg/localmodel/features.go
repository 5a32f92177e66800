package localmodel

import (
	"slices"
	"time"

	"github.com/eduardo5010/study-cycle/pkg/model"
)

type timelineKey struct {
	learner model.LearnerID
	item    model.StudyItemID
}

// BuildSamples turns an outcome log into training samples. Events are grouped
// per learner and item and ordered by time; each event becomes one sample
// whose features describe the history before it and whose label is the
// observed correctness.
func BuildSamples(events []*model.ReviewOutcomeEvent) []model.TrainingSample {
	timelines := make(map[timelineKey][]*model.ReviewOutcomeEvent)
	var keys []timelineKey
	for _, ev := range events {
		k := timelineKey{learner: ev.LearnerID, item: ev.ItemID}
		if _, ok := timelines[k]; !ok {
			keys = append(keys, k)
		}
		timelines[k] = append(timelines[k], ev)
	}

	var samples []model.TrainingSample
	for _, k := range keys {
		tl := sortedTimeline(timelines[k])
		for i, ev := range tl {
			f := historyFeatures(tl[:i])
			if i > 0 {
				f.TimeSincePrev = gap(tl, i)
			}
			samples = append(samples, model.TrainingSample{
				Features: f,
				Label:    float64(ev.Correctness),
			})
		}
	}
	return samples
}

// NextFeatures builds the features of a review taken candidateSec seconds
// from now, given the learner's history on the item.
func NextFeatures(history []*model.ReviewOutcomeEvent, now time.Time, candidateSec float64) model.Features {
	tl := sortedTimeline(history)
	f := historyFeatures(tl)
	f.TimeSincePrev = candidateSec
	if len(tl) > 0 {
		if elapsed := now.Sub(tl[len(tl)-1].Timestamp).Seconds(); elapsed > 0 {
			f.TimeSincePrev += elapsed
		}
	}
	return f
}

// historyFeatures summarises the gaps between the given (sorted) reviews
func historyFeatures(tl []*model.ReviewOutcomeEvent) model.Features {
	f := model.Features{NPrev: float64(len(tl))}
	if len(tl) < 2 {
		return f
	}
	var sum float64
	for j := 1; j < len(tl); j++ {
		sum += gap(tl, j)
	}
	f.AvgPrevInterval = sum / float64(len(tl)-1)
	f.LastInterval = gap(tl, len(tl)-1)
	return f
}

// gap is the time between review j-1 and j. A recorded elapsed time wins over
// the timestamp difference.
func gap(tl []*model.ReviewOutcomeEvent, j int) float64 {
	if tl[j].TimeSinceLastReviewSec > 0 {
		return tl[j].TimeSinceLastReviewSec
	}
	d := tl[j].Timestamp.Sub(tl[j-1].Timestamp).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

func sortedTimeline(events []*model.ReviewOutcomeEvent) []*model.ReviewOutcomeEvent {
	tl := slices.Clone(events)
	slices.SortStableFunc(tl, func(a, b *model.ReviewOutcomeEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return tl
}
