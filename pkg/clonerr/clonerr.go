// Package clonerr defines the typed error-kind discipline used across the
// pipeline in place of the source system's exceptions-as-control-flow.
// Every cloud call returns either a typed success or a *CloudError with a
// discriminant, grounded on the teacher's deployment-error flattening in
// pkg/azapi (deployment_error_pipeline_test.go) and the pattern/error-type
// matching in pkg/errorhandler.
package clonerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the error categories named in spec §7.
type Kind string

const (
	TransientCloud    Kind = "TransientCloud"
	AuthFailure       Kind = "AuthFailure"
	NotFound          Kind = "NotFound"
	ValidationFailure Kind = "ValidationFailure"
	InvalidState      Kind = "InvalidState"
	DeploymentTimeout Kind = "DeploymentTimeout"
	PersistenceFail   Kind = "PersistenceFailure"
	Unknown           Kind = "Unknown"
)

// Detail is one leaf of a flattened ARM error tree.
type Detail struct {
	Code    string
	Message string
	Target  string
}

// CloudError is the discriminated union every cloud call can fail with.
type CloudError struct {
	Kind    Kind
	Code    string
	Message string
	Target  string
	Details []Detail
	Cause   error
}

func (e *CloudError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CloudError) Unwrap() error { return e.Cause }

// New builds a CloudError of the given kind.
func New(kind Kind, code, message string) *CloudError {
	return &CloudError{Kind: kind, Code: code, Message: message}
}

// Wrap annotates an arbitrary error with a kind, preserving it as the cause.
func Wrap(kind Kind, err error) *CloudError {
	if err == nil {
		return nil
	}
	var ce *CloudError
	if errors.As(err, &ce) {
		return ce
	}
	return &CloudError{Kind: kind, Message: err.Error(), Cause: err}
}

// Is reports whether err is a CloudError of the given kind.
func Is(err error, kind Kind) bool {
	var ce *CloudError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// rawErrorNode mirrors the nested shape ARM returns for compound
// validation/deployment failures: {code, message, target?, details: [...]}.
type rawErrorNode struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Target  string         `json:"target,omitempty"`
	Details []rawErrorNode `json:"details,omitempty"`
}

// Flatten walks a nested ARM error tree and returns every leaf (a node with
// no children) as a Detail, in depth-first order. A non-compound error
// (no details) yields a single-element slice. Grounded on
// deployment_error_pipeline_test.go's "nested details flattened to leaves"
// behavior.
func Flatten(root map[string]any) []Detail {
	node := parseNode(root)
	if node == nil {
		return nil
	}
	var out []Detail
	flattenNode(*node, &out)
	return out
}

func flattenNode(n rawErrorNode, out *[]Detail) {
	if len(n.Details) == 0 {
		*out = append(*out, Detail{Code: n.Code, Message: n.Message, Target: n.Target})
		return
	}
	for _, child := range n.Details {
		flattenNode(child, out)
	}
}

func parseNode(m map[string]any) *rawErrorNode {
	if m == nil {
		return nil
	}
	n := &rawErrorNode{}
	if v, ok := m["code"].(string); ok {
		n.Code = v
	}
	if v, ok := m["message"].(string); ok {
		n.Message = v
	}
	if v, ok := m["target"].(string); ok {
		n.Target = v
	}
	if raw, ok := m["details"].([]any); ok {
		for _, item := range raw {
			if child, ok := item.(map[string]any); ok {
				if parsed := parseNode(child); parsed != nil {
					n.Details = append(n.Details, *parsed)
				}
			}
		}
	}
	return n
}

// ClassifyHTTPStatus maps an HTTP status observed by the cloud API client to
// a Kind, per spec §4.1's "429 triggers backoff; 401/403 fails fast".
func ClassifyHTTPStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return AuthFailure
	case status == 404:
		return NotFound
	case status == 429 || status >= 500:
		return TransientCloud
	default:
		return Unknown
	}
}
