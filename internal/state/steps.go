package state

// StepID names one unit of pipeline work with a boolean outcome. The set is
// closed: a processing run always records all four flags, and unknown names
// cannot enter the state file.
type StepID string

const (
	// StepTranscript covers fetching the episode transcript.
	StepTranscript StepID = "transcript"
	// StepMetadata covers generating chapters, title, and description and
	// pushing the updated snippet to the platform.
	StepMetadata StepID = "metadata"
	// StepThumbnail covers rendering the thumbnail and setting it on the video.
	StepThumbnail StepID = "thumbnail"
	// StepCaptions covers building the SRT track and inserting it.
	StepCaptions StepID = "captions"
)

// StepOrder lists the steps in the order the pipeline earns them.
var StepOrder = []StepID{StepTranscript, StepMetadata, StepThumbnail, StepCaptions}

// KnownStep reports whether id names one of the fixed pipeline steps.
func KnownStep(id StepID) bool {
	switch id {
	case StepTranscript, StepMetadata, StepThumbnail, StepCaptions:
		return true
	}
	return false
}

// Steps records the success flag for each pipeline step of one processing run.
// A zero value means nothing succeeded.
type Steps struct {
	Transcript bool `json:"transcript"`
	Metadata   bool `json:"metadata"`
	Thumbnail  bool `json:"thumbnail"`
	Captions   bool `json:"captions"`
}

// Completed reports whether every step flag is true.
func (s Steps) Completed() bool {
	return s.Transcript && s.Metadata && s.Thumbnail && s.Captions
}

// Done reports the flag for a single step.
func (s Steps) Done(id StepID) bool {
	switch id {
	case StepTranscript:
		return s.Transcript
	case StepMetadata:
		return s.Metadata
	case StepThumbnail:
		return s.Thumbnail
	case StepCaptions:
		return s.Captions
	}
	return false
}

// Set marks a single step as succeeded.
func (s *Steps) Set(id StepID) {
	switch id {
	case StepTranscript:
		s.Transcript = true
	case StepMetadata:
		s.Metadata = true
	case StepThumbnail:
		s.Thumbnail = true
	case StepCaptions:
		s.Captions = true
	}
}

// Missing returns the steps whose flag is false, in pipeline order.
func (s Steps) Missing() []StepID {
	var missing []StepID
	for _, id := range StepOrder {
		if !s.Done(id) {
			missing = append(missing, id)
		}
	}
	return missing
}
