package types

// VerdictKind tags the outcome of a gating check
type VerdictKind int

const (
	// Proceed lets the message continue down the pipeline
	Proceed VerdictKind = iota
	// Skip drops the message permanently (it is flagged seen)
	Skip
	// Denied drops the message for this cycle only
	Denied
)

func (k VerdictKind) String() string {
	switch k {
	case Proceed:
		return "proceed"
	case Skip:
		return "skip"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Verdict is the result of the loop guard or the rate limiter.
type Verdict struct {
	Kind   VerdictKind
	Reason string
	// Detail carries the offending value for logging, e.g. the header content
	Detail string
}

// ProceedVerdict allows the message through.
func ProceedVerdict() Verdict {
	return Verdict{Kind: Proceed}
}

// SkipVerdict rejects the message with reason.
func SkipVerdict(reason, detail string) Verdict {
	return Verdict{Kind: Skip, Reason: reason, Detail: detail}
}

// DenyVerdict defers the message with reason.
func DenyVerdict(reason, detail string) Verdict {
	return Verdict{Kind: Denied, Reason: reason, Detail: detail}
}

// OK reports whether the verdict is Proceed.
func (v Verdict) OK() bool {
	return v.Kind == Proceed
}
