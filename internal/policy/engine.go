package policy

import "fmt"

// Violation kinds. These names surface in decision output and CI logs.
const (
	ViolationAttestationMissing = "attestation_missing"
	ViolationMissingProvenance  = "missing_provenance"
	ViolationMissingApproval    = "missing_approval"
)

// Violation is one structured rule failure. Trust errors are always
// reported this way, never as opaque errors: the engine's job is to
// make every denial enumerable.
type Violation struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Resource string `json:"resource,omitempty"`
}

// Rule is a pure predicate over a document. A nil result means the
// rule passes. Adding a rule to the set is the whole extension story.
type Rule struct {
	Name  string
	Check func(doc *Document) *Violation
}

// DefaultRules returns the deployment rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "artifact_attested",
			Check: func(doc *Document) *Violation {
				if doc.Metadata.Provenance.AttestationVerified {
					return nil
				}
				return &Violation{
					Type:     ViolationAttestationMissing,
					Severity: "error",
					Message:  "artifact attestation has not been verified",
				}
			},
		},
		{
			Name: "has_valid_provenance",
			Check: func(doc *Document) *Violation {
				if doc.Metadata.Provenance.RenderRunID != "" {
					return nil
				}
				return &Violation{
					Type:     ViolationMissingProvenance,
					Severity: "error",
					Message:  "provenance record has no render run id",
				}
			},
		},
		{
			Name: "has_pr_approval",
			Check: func(doc *Document) *Violation {
				p := doc.Metadata.Provenance
				if p.PRNumber != "" && p.Approver != "" {
					return nil
				}
				return &Violation{
					Type:     ViolationMissingApproval,
					Severity: "error",
					Message:  "plan is missing pull request approval",
				}
			},
		},
	}
}

// Summary is a self-contained audit snapshot of a decision,
// independent of the detailed violations list.
type Summary struct {
	Allowed               bool `json:"allowed"`
	ApprovalRequired      bool `json:"approval_required"`
	TotalResources        int  `json:"total_resources"`
	ToCreate              int  `json:"to_create"`
	ToUpdate              int  `json:"to_update"`
	ToDelete              int  `json:"to_delete"`
	ViolationCount        int  `json:"violation_count"`
	DenialReasonCount     int  `json:"denial_reason_count"`
	ArtifactAttested      bool `json:"artifact_attested"`
	HasDestructiveChanges bool `json:"has_destructive_changes"`
}

// Decision is the evaluation output. Never persisted as mutable state;
// recomputed from scratch on every evaluation.
type Decision struct {
	Allow            bool        `json:"allow"`
	ApprovalRequired bool        `json:"approval_required"`
	Deny             []string    `json:"deny"`
	Violations       []Violation `json:"violations"`
	Summary          Summary     `json:"summary"`
}

// Engine evaluates documents against an ordered rule list.
type Engine struct {
	rules []Rule
}

// NewEngine returns an Engine using the default rule set.
func NewEngine() *Engine {
	return &Engine{rules: DefaultRules()}
}

// NewEngineWithRules returns an Engine with a custom rule list.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Evaluate folds the rule list over the document and classifies the
// planned changes. allow is true exactly when no rule is violated;
// there is no partial allow. approval_required is computed from the
// destructive-change scan alone and never influences allow: blocking a
// destructive-but-valid plan on a human is the orchestrator's job.
func (e *Engine) Evaluate(doc *Document) *Decision {
	decision := &Decision{
		Deny:       []string{},
		Violations: []Violation{},
	}

	for _, rule := range e.rules {
		if v := rule.Check(doc); v != nil {
			decision.Violations = append(decision.Violations, *v)
			decision.Deny = append(decision.Deny, fmt.Sprintf("%s: %s", v.Type, v.Message))
		}
	}

	var toCreate, toUpdate, toDelete int
	for _, rc := range doc.Plan {
		switch {
		case rc.Change.HasDelete():
			toDelete++
		case rc.Change.HasUpdate():
			toUpdate++
		case rc.Change.IsCreateOnly():
			toCreate++
		}
	}

	decision.Allow = len(decision.Violations) == 0
	decision.ApprovalRequired = toDelete > 0

	decision.Summary = Summary{
		Allowed:               decision.Allow,
		ApprovalRequired:      decision.ApprovalRequired,
		TotalResources:        len(doc.Plan),
		ToCreate:              toCreate,
		ToUpdate:              toUpdate,
		ToDelete:              toDelete,
		ViolationCount:        len(decision.Violations),
		DenialReasonCount:     len(decision.Deny),
		ArtifactAttested:      doc.Metadata.Provenance.AttestationVerified,
		HasDestructiveChanges: toDelete > 0,
	}

	return decision
}
