package model

// FeatureCount is the width of the local model input vector
const FeatureCount = 4

// Features is the local model input. It is a separate contract from the
// remote PredictRequest and the two are not kept in sync.
type Features struct {
	NPrev           float64 `json:"n_prev"`
	AvgPrevInterval float64 `json:"avg_prev_interval"`
	LastInterval    float64 `json:"last_interval"`
	TimeSincePrev   float64 `json:"time_since_prev"`
}

// Vector returns the features in the fixed input order
func (f Features) Vector() [FeatureCount]float64 {
	return [FeatureCount]float64{f.NPrev, f.AvgPrevInterval, f.LastInterval, f.TimeSincePrev}
}

// TrainingSample pairs features with an observed outcome label in [0,1]
type TrainingSample struct {
	Features
	Label float64 `json:"label"`
}
