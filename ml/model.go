package ml

// Classifier is a trained model that maps one scaled feature vector to a class code.
type Classifier interface {
	Predict(features []float64) (int, error)
}

// Inspectable classifiers can be checked against the bundle they are loaded into.
type Inspectable interface {
	Validate(numFeatures, numClasses int) error
}
