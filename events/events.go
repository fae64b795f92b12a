package events

// EventHandler is the interface of the call back function for receiveing events.
type EventHandler func(Event)

// Event is used to type restrict the Events
type Event interface {
	isEvent()
}

// Trace is useful to see some details of what's going on
type Trace struct {
	ID      string
	Message string
	event
}

// ContentFetched indicates that the application name and the active plans
// were read from the content source.
type ContentFetched struct {
	ID            string
	AppName       string
	PlanCount     int
	DefaultedName bool
	event
}

// RetrievalFailed indicates that the content source returned an error. No
// write is attempted after it.
type RetrievalFailed struct {
	ID    string
	Error error
	event
}

// Rendered indicates that the page was rendered. DidRender is false when the
// file on disk already matched or in dry mode.
type Rendered struct {
	ID          string
	Path        string
	DidRender   bool
	WouldRender bool
	event
}

// WriteFailed indicates that rendering or writing the page failed and the
// target was left as it was.
type WriteFailed struct {
	ID    string
	Path  string
	Error error
	event
}

// Event interface type fulfillment
type event struct{}

func (event) isEvent() {}
