// Package gate sequences the pipeline stages (render, verify,
// evaluate) and owns the provenance record's lifecycle. Stages only
// ever communicate through their declared artifact contracts; the gate
// threads a single render run id through all of them and rejects any
// stage input that is not traceable to it.
package gate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/boycivenga/netgate/internal/policy"
)

// NewRunID returns the identifier for a render run. Inside GitHub
// Actions the workflow run id is used so artifacts trace back to the
// exact pipeline execution; elsewhere a timestamped random id is
// generated.
func NewRunID() string {
	if id := os.Getenv("GITHUB_RUN_ID"); id != "" {
		return id
	}

	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return time.Now().UTC().Format("20060102T150405Z")
	}
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405Z"), hex.EncodeToString(buf))
}

// NewProvenance creates the record at render time. Only the run id is
// known at this point.
func NewProvenance(renderRunID string) policy.Provenance {
	return policy.Provenance{RenderRunID: renderRunID}
}

// WithApproval returns a copy enriched with the PR approval fields.
// Value semantics keep the record handed to earlier stages immutable.
func WithApproval(p policy.Provenance, prNumber, approver string, approvedAt time.Time) policy.Provenance {
	p.PRNumber = prNumber
	p.Approver = approver
	p.ApprovedAt = approvedAt.UTC().Format(time.RFC3339)
	return p
}

// WithVerification returns a copy finalized with the attestation
// verification outcome.
func WithVerification(p policy.Provenance, verified bool) policy.Provenance {
	p.AttestationVerified = verified
	return p
}
