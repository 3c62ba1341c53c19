package domain

type VerdictStatus string

const (
	StatusSuccess VerdictStatus = "success"
	StatusError   VerdictStatus = "error"
)

type VerdictErrorKind string

const (
	KindNone                  VerdictErrorKind = ""
	KindFileTooLarge          VerdictErrorKind = "file_too_large"
	KindInvalidSignature      VerdictErrorKind = "invalid_signature"
	KindPasswordProtected     VerdictErrorKind = "password_protected"
	KindCorrupted             VerdictErrorKind = "corrupted"
	KindEmptyContent          VerdictErrorKind = "empty_content"
	KindNoTextFound           VerdictErrorKind = "no_text_found"
	KindOCRUnavailable        VerdictErrorKind = "ocr_unavailable"
	KindIllegible             VerdictErrorKind = "illegible"
	KindRateLimited           VerdictErrorKind = "rate_limited"
	KindTimeout               VerdictErrorKind = "timeout"
	KindSafetyBlocked         VerdictErrorKind = "safety_blocked"
	KindClassifierResponse    VerdictErrorKind = "classifier_response"
	KindClassifierUnavailable VerdictErrorKind = "classifier_unavailable"
	KindWrongType             VerdictErrorKind = "wrong_type"
	KindAbsenceOfData         VerdictErrorKind = "absence_of_data"
	KindNotMatched            VerdictErrorKind = "not_matched"
)

// ValidationVerdict is the single terminal outcome of a pipeline run.
type ValidationVerdict struct {
	Status    VerdictStatus           `json:"status"`
	Message   string                  `json:"message"`
	Method    Method                  `json:"method"`
	ErrorKind VerdictErrorKind        `json:"error_kind,omitempty"`
	Retryable bool                    `json:"retryable"`
	Candidate ClassificationCandidate `json:"candidate"`
}

func (v ValidationVerdict) OK() bool {
	return v.Status == StatusSuccess
}

func AcceptVerdict(message string, candidate ClassificationCandidate) ValidationVerdict {
	return ValidationVerdict{
		Status:    StatusSuccess,
		Message:   message,
		Method:    candidate.Method,
		Candidate: candidate,
	}
}

func RejectVerdict(kind VerdictErrorKind, method Method, message string, candidate ClassificationCandidate) ValidationVerdict {
	if candidate.Method == "" {
		candidate.Method = method
	}
	return ValidationVerdict{
		Status:    StatusError,
		Message:   message,
		Method:    method,
		ErrorKind: kind,
		Candidate: candidate,
	}
}

// RetryableVerdict marks a rejection the caller may resubmit unchanged.
func RetryableVerdict(kind VerdictErrorKind, method Method, message string) ValidationVerdict {
	v := RejectVerdict(kind, method, message, ClassificationCandidate{})
	v.Retryable = true
	return v
}
