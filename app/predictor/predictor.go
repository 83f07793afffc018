package predictor

import "context"

const MaxImages = 4

type PredictInput struct {
	// Images are https URLs or data: URLs; at most MaxImages are used.
	Images []string

	SubjectName string
	SubjectAge  string
	Intent      string
	About       string
}

type Predictor interface {
	Predict(ctx context.Context, input *PredictInput) (string, error)
}
