// Package policy evaluates a rendered plan and its provenance against
// the deployment rule set. Evaluation is a pure function: no I/O, no
// mutation of the input, identical decisions for identical documents.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
)

// Document is the policy engine input: the planned resource changes
// plus provenance metadata, as produced by the plan stage.
type Document struct {
	Plan     []ResourceChange `json:"plan"`
	Metadata Metadata         `json:"metadata"`
}

// ResourceChange is one entry of a Terraform JSON plan's
// resource_changes list, reduced to the fields the rules inspect.
type ResourceChange struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Change  Change `json:"change"`
}

// Change holds the action set for a resource change.
type Change struct {
	Actions []string `json:"actions"`
}

// Metadata carries the artifact identity and provenance record.
type Metadata struct {
	Artifact         Artifact   `json:"artifact"`
	Provenance       Provenance `json:"provenance"`
	DeletionApproved bool       `json:"deletion_approved"`
}

// Artifact identifies the tfvars artifact the plan was produced from.
type Artifact struct {
	Path string `json:"path"`
	Site string `json:"site"`
}

// Provenance is the traceability payload carried alongside an
// artifact through the pipeline. Created at render time, enriched at
// approval time, finalized at verification time; the policy engine
// only ever reads it.
type Provenance struct {
	RenderRunID         string `json:"render_run_id"`
	AttestationVerified bool   `json:"attestation_verified"`
	PRNumber            string `json:"pr_number,omitempty"`
	Approver            string `json:"approver,omitempty"`
	ApprovedAt          string `json:"approved_at,omitempty"`
}

// HasDelete reports whether the action set includes a delete.
func (c Change) HasDelete() bool {
	for _, a := range c.Actions {
		if a == "delete" {
			return true
		}
	}
	return false
}

// HasUpdate reports whether the action set includes an update.
func (c Change) HasUpdate() bool {
	for _, a := range c.Actions {
		if a == "update" {
			return true
		}
	}
	return false
}

// IsCreateOnly reports whether the action set is exactly {create}.
func (c Change) IsCreateOnly() bool {
	return len(c.Actions) == 1 && c.Actions[0] == "create"
}

// LoadDocument reads a plan+provenance document from disk.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy input: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy input %s: %w", path, err)
	}
	return &doc, nil
}
