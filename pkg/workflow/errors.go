package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrComplete rejects any mutation or navigation after a successful
	// submission.
	ErrComplete = errors.New("workflow: record already submitted")

	// ErrStaleResult discards an asynchronous result that arrived after the
	// record moved on from the state the work was started against.
	ErrStaleResult = errors.New("workflow: stale result discarded")

	// ErrOwnerLimit rejects role-holders beyond MaxOwners.
	ErrOwnerLimit = errors.New("workflow: beneficial owner limit reached")

	// ErrUnknownOwner rejects updates addressed to an owner ID that is not
	// on the record.
	ErrUnknownOwner = errors.New("workflow: unknown beneficial owner")

	// ErrRestrictedType rejects an organization type that cannot operate in
	// the selected incorporation state.
	ErrRestrictedType = errors.New("workflow: organization type restricted in incorporation state")

	// ErrUnknownType rejects organization type values outside the catalog.
	ErrUnknownType = errors.New("workflow: unknown organization type")

	// ErrTermsNotAccepted blocks submission until the terms of service have
	// been accepted.
	ErrTermsNotAccepted = errors.New("workflow: terms of service must be accepted before submission")

	// ErrNotAtReview blocks submission from any step before review.
	ErrNotAtReview = errors.New("workflow: submission is only available from the review step")

	// ErrNoSubmitter reports a machine constructed without a submitter.
	ErrNoSubmitter = errors.New("workflow: no submitter configured")
)

// ValidationError carries the per-field messages that blocked a step
// transition or an owner mutation. Keys are field keys, values are the
// user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "workflow: validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return fmt.Sprintf("workflow: validation failed: %s", strings.Join(keys, ", "))
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
