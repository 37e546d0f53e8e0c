package llm

import "fmt"

// BackendError reports an unreachable or erroring model endpoint. It is
// caught at the orchestration boundary and converted to a visible error
// event; it never carries the credential.
type BackendError struct {
	Status int
	Detail string
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("model backend returned %d: %s", e.Status, e.Detail)
	}
	return "model backend error: " + e.Detail
}
