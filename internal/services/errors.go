package services

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrProviderUnavailable marks network, auth, quota and timeout failures of an
	// external provider. Retryable within a provider, and the chain advances.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderRejected marks input the provider refused (bad argument,
	// unsupported language, permission denied). Never retried against the same provider.
	ErrProviderRejected = errors.New("provider rejected request")
	// ErrExtraction marks a failure of the slide extraction collaborator.
	ErrExtraction = errors.New("extraction failure")
	// ErrAssembly marks an encoder-level failure while building the video.
	ErrAssembly = errors.New("assembly failure")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind is a stable label for the marker attached to an error.
type ErrorKind string

const (
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindProviderRejected    ErrorKind = "provider_rejected"
	KindExtraction          ErrorKind = "extraction"
	KindAssembly            ErrorKind = "assembly"
	KindExternalTool        ErrorKind = "external_tool"
	KindValidation          ErrorKind = "validation"
	KindConfiguration       ErrorKind = "configuration"
	KindNotFound            ErrorKind = "not_found"
	KindTimeout             ErrorKind = "timeout"
	KindTransient           ErrorKind = "transient"
	KindUnknown             ErrorKind = "unknown"
)

var kindByMarker = []struct {
	marker error
	kind   ErrorKind
	hint   string
}{
	{ErrProviderUnavailable, KindProviderUnavailable, "check network access, API quota and credentials, then retry the job"},
	{ErrProviderRejected, KindProviderRejected, "check the API key permissions and the requested language"},
	{ErrExtraction, KindExtraction, "check the source file and the extraction command, then retry"},
	{ErrAssembly, KindAssembly, "inspect the encoder output; stage artifacts remain on disk for a retry"},
	{ErrExternalTool, KindExternalTool, "check that the external binary is installed and runnable"},
	{ErrValidation, KindValidation, "fix the input and start a new job"},
	{ErrConfiguration, KindConfiguration, "fix the configuration and retry the job"},
	{ErrNotFound, KindNotFound, "verify the referenced file or job exists"},
	{ErrTimeout, KindTimeout, "raise the configured timeout or retry later"},
	{ErrTransient, KindTransient, "retry the job"},
}

// ServiceError carries a marker plus the stage and operation where a failure happened.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Code      string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// WithCode attaches a provider or tool specific code (HTTP status, exit code).
func WithCode(err error, code int) error {
	var svc *ServiceError
	if errors.As(err, &svc) {
		clone := *svc
		clone.Code = strconv.Itoa(code)
		return &clone
	}
	return err
}

// MarkerForHTTPStatus picks the marker for a failed HTTP call: client-side
// rejections are permanent, timeouts, throttling and server errors are not.
func MarkerForHTTPStatus(code int) error {
	switch {
	case code == 408 || code == 429 || code >= 500:
		return ErrProviderUnavailable
	case code >= 400:
		return ErrProviderRejected
	default:
		return ErrProviderUnavailable
	}
}

// RetryAfter reports a delay requested by the remote side (an HTTP
// Retry-After header, for example) when err carries one.
func RetryAfter(err error) (time.Duration, bool) {
	var hinted interface{ RetryAfterDelay() time.Duration }
	if errors.As(err, &hinted) {
		if d := hinted.RetryAfterDelay(); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// ErrorDetails is the structured view of an error used for logging.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Code      string
	Hint      string
	Cause     error
}

// Details extracts logging fields from err. Errors that were not built by Wrap
// are classified by marker only.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: KindUnknown}
	for _, entry := range kindByMarker {
		if errors.Is(err, entry.marker) {
			details.Kind = entry.kind
			details.Hint = entry.hint
			break
		}
	}
	var svc *ServiceError
	if errors.As(err, &svc) {
		details.Stage = svc.Stage
		details.Operation = svc.Operation
		details.Message = svc.Message
		details.Code = svc.Code
		details.Cause = svc.Cause
	}
	if details.Message == "" {
		details.Message = err.Error()
	}
	return details
}

// IsFatal reports whether err must stop the job rather than degrade a slide.
func IsFatal(err error) bool {
	return errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrAssembly) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrValidation)
}

// StageFailure is the job-level failure surfaced to callers: the stage that
// failed and, when the failure is per slide, the affected slide indices.
type StageFailure struct {
	Stage  string
	Slides []int
	Err    error
}

// NewStageFailure builds a StageFailure with sorted slide indices.
func NewStageFailure(stage string, slides []int, err error) *StageFailure {
	sorted := append([]int(nil), slides...)
	slices.Sort(sorted)
	return &StageFailure{Stage: stage, Slides: sorted, Err: err}
}

func (f *StageFailure) Error() string {
	var b strings.Builder
	b.WriteString(f.Stage)
	b.WriteString(" failed")
	if len(f.Slides) > 0 {
		b.WriteString(" for slides ")
		b.WriteString(FormatSlides(f.Slides))
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *StageFailure) Unwrap() error { return f.Err }

// FormatSlides renders slide indices as a comma separated list.
func FormatSlides(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ",")
}

// ParseSlides reverses FormatSlides. Malformed entries are skipped.
func ParseSlides(raw string) []int {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		if v, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
