package extract

import "errors"

var (
	// ErrExtraction is the parent of every extraction failure.
	ErrExtraction = errors.New("memory extraction failed")

	ErrEmptyContent = wrap("empty content")
	ErrStream       = wrap("model stream failed")
	ErrEmptyReply   = wrap("empty reply from model")
	ErrNoJSON       = wrap("no JSON object in reply")
	ErrMalformed    = wrap("malformed extraction result")
)

type extractionError struct {
	msg string
}

func (e *extractionError) Error() string { return e.msg }
func (e *extractionError) Unwrap() error { return ErrExtraction }

func wrap(msg string) error {
	return &extractionError{msg: msg}
}

// Memory is one piece of information the model judged worth keeping.
type Memory struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags,omitempty"`
	Source  string   `json:"source,omitempty"`
}

// Extraction is the structured answer of the model.
type Extraction struct {
	// Importance is in [0, 1].
	Importance float64 `json:"importance"`

	Memories []Memory `json:"memories"`
}

// Status tells whether a Result came from the model or from the fallback.
type Status int

const (
	// StatusDefaulted means extraction failed and the zero Extraction was used.
	StatusDefaulted Status = iota

	// StatusParsed means the model reply was parsed successfully.
	StatusParsed
)

func (s Status) String() string {
	if s == StatusParsed {
		return "parsed"
	}
	return "defaulted"
}

// Result is the outcome of one extraction call. A defaulted result always
// carries the zero Extraction and the reason in Err.
type Result struct {
	Extraction
	Status Status
	Err    error
}

// Parsed reports whether the result came from the model.
func (r Result) Parsed() bool {
	return r.Status == StatusParsed
}

func defaulted(err error) Result {
	return Result{
		Extraction: Extraction{Importance: 0, Memories: []Memory{}},
		Status:     StatusDefaulted,
		Err:        err,
	}
}

func parsed(x Extraction) Result {
	return Result{Extraction: x, Status: StatusParsed}
}
