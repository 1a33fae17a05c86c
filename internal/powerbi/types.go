package powerbi

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the type of refreshable Power BI resource
type Kind string

const (
	KindDataset  Kind = "dataset"
	KindDataflow Kind = "dataflow"
)

// ParseKind accepts singular and plural spellings, case-insensitively
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dataset", "datasets":
		return KindDataset, nil
	case "dataflow", "dataflows":
		return KindDataflow, nil
	}
	return "", fmt.Errorf("%w: unknown resource kind %q", ErrInvalidTarget, s)
}

// collection is the REST path segment for the kind
func (k Kind) collection() string {
	return string(k) + "s"
}

var (
	// ErrInvalidTarget is returned for targets that cannot form a refresh URL
	ErrInvalidTarget = errors.New("invalid refresh target")
	// ErrMissingToken is returned when a refresh is attempted without a token
	ErrMissingToken = errors.New("missing access token")
)

// Target identifies the dataset or dataflow to refresh
type Target struct {
	WorkspaceID string `json:"workspace_id"`
	ResourceID  string `json:"resource_id"`
	Kind        Kind   `json:"kind"`
}

func DatasetTarget(workspaceID, datasetID string) Target {
	return Target{WorkspaceID: workspaceID, ResourceID: datasetID, Kind: KindDataset}
}

func DataflowTarget(workspaceID, dataflowID string) Target {
	return Target{WorkspaceID: workspaceID, ResourceID: dataflowID, Kind: KindDataflow}
}

// Validate rejects ids that would change the shape of the refresh URL.
// Ids are otherwise opaque and are not escaped.
func (t Target) Validate() error {
	if t.Kind != KindDataset && t.Kind != KindDataflow {
		return fmt.Errorf("%w: unknown resource kind %q", ErrInvalidTarget, t.Kind)
	}
	if err := validateSegment("workspace id", t.WorkspaceID); err != nil {
		return err
	}
	return validateSegment(string(t.Kind)+" id", t.ResourceID)
}

func validateSegment(field, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidTarget, field)
	}
	if strings.ContainsAny(v, "/?#") {
		return fmt.Errorf("%w: %s %q contains a reserved character", ErrInvalidTarget, field, v)
	}
	return nil
}

// RefreshResult describes the Power BI API's answer to a refresh request
type RefreshResult struct {
	TriggerID  string `json:"trigger_id,omitempty"`
	Target     Target `json:"target"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	// RequestID is the Power BI activity id, useful when raising support tickets
	RequestID string `json:"request_id,omitempty"`
	Body      string `json:"body,omitempty"`
}

// Succeeded reports whether Power BI accepted the refresh request (2xx).
// Acceptance does not mean the refresh itself will complete.
func (r *RefreshResult) Succeeded() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// StatusError is returned when Power BI answers a refresh request with a
// non-2xx status
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("refresh request to %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("refresh request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}
