package camera

// Status is the recording state of a Camera.
type Status int

const (
	// StatusNotStarted is the state of a camera that is closed, or open and not recording.
	StatusNotStarted Status = iota
	StatusRecording
	StatusStopped
	StatusStopping
	StatusPaused
	StatusFinished
	StatusInvalid
)

var statusNames = map[Status]string{
	StatusNotStarted: "not started",
	StatusRecording:  "recording",
	StatusStopped:    "stopped",
	StatusStopping:   "stopping",
	StatusPaused:     "paused",
	StatusFinished:   "finished",
	StatusInvalid:    "invalid",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusInvalid]
}
