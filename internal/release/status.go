package release

// Status is a release lifecycle state.
type Status string

const (
	StatusPending                  Status = "PENDING"
	StatusLoadingData              Status = "LOADING_DATA"
	StatusGeneratingConfigurations Status = "GENERATING_CONFIGURATIONS"
	StatusProcessingImages         Status = "PROCESSING_IMAGES"
	StatusFinalizing               Status = "FINALIZING"
	StatusCreatingPackage          Status = "CREATING_PACKAGE"
	StatusCompleted                Status = "COMPLETED"
	StatusFailed                   Status = "FAILED"
)

var next = map[Status]Status{
	StatusPending:                  StatusLoadingData,
	StatusLoadingData:              StatusGeneratingConfigurations,
	StatusGeneratingConfigurations: StatusProcessingImages,
	StatusProcessingImages:         StatusFinalizing,
	StatusFinalizing:               StatusCreatingPackage,
	StatusCreatingPackage:          StatusCompleted,
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether s may move to to: one step forward, or to
// FAILED from any non-terminal state.
func (s Status) CanTransition(to Status) bool {
	if s.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return next[s] == to
}

// Step describes the state for progress displays.
func (s Status) Step() string {
	switch s {
	case StatusPending:
		return "Queued"
	case StatusLoadingData:
		return "Loading source images"
	case StatusGeneratingConfigurations:
		return "Generating transformation configurations"
	case StatusProcessingImages:
		return "Processing images"
	case StatusFinalizing:
		return "Writing labels and statistics"
	case StatusCreatingPackage:
		return "Creating package"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	}
	return string(s)
}
