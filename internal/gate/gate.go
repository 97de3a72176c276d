package gate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/boycivenga/netgate/internal/attest"
	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/logger"
	"github.com/boycivenga/netgate/internal/policy"
	"github.com/boycivenga/netgate/internal/render"
)

// ErrRunMismatch reports a stage input whose provenance does not trace
// back to this gate's render run.
var ErrRunMismatch = errors.New("artifact provenance does not match the current render run")

// Options configures a gate run.
type Options struct {
	OutputDir string
	RunID     string // empty: NewRunID()
	PRNumber  string
	Approver  string
	PlanFile  string // optional plan+metadata document to evaluate
}

// Outcome is the full report of a gate run, one stage at a time. Apply
// is not part of it: the gate stops at the decision and the external
// orchestrator takes over.
type Outcome struct {
	RunID      string              `json:"run_id"`
	Render     *render.Result      `json:"render"`
	Verify     *attest.BatchResult `json:"verify,omitempty"`
	Provenance policy.Provenance   `json:"provenance"`
	Decision   *policy.Decision    `json:"decision,omitempty"`
}

// Gate wires the pipeline stages together.
type Gate struct {
	renderer *render.Renderer
	signer   *attest.Signer
	verifier *attest.Verifier
	engine   *policy.Engine
	log      logger.Logger
}

// New builds a Gate. signer may be nil when artifacts are attested by
// an external build system (the production path); in that case the
// verifier checks whatever sidecars are already present.
func New(renderer *render.Renderer, signer *attest.Signer, verifier *attest.Verifier, engine *policy.Engine, log logger.Logger) *Gate {
	return &Gate{
		renderer: renderer,
		signer:   signer,
		verifier: verifier,
		engine:   engine,
		log:      log,
	}
}

// Run executes render → attest → verify → evaluate for one intent set,
// threading a single run id through every stage. It is fail-closed:
// the first stage that cannot vouch for its input stops the run.
func (g *Gate) Run(ctx context.Context, set *intent.Set, opts Options) (*Outcome, error) {
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID()
	}

	out := &Outcome{
		RunID:      runID,
		Provenance: NewProvenance(runID),
	}
	log := g.log.WithField("run_id", runID)

	log.Info("render stage")
	renderRes, err := g.renderer.RenderTo(ctx, set, opts.OutputDir)
	if err != nil {
		return out, fmt.Errorf("render stage: %w", err)
	}
	out.Render = renderRes
	if !renderRes.OK() {
		return out, fmt.Errorf("render stage: %d site(s) failed validation", len(renderRes.Errors))
	}

	if g.signer != nil {
		for _, artifact := range renderRes.Written {
			if _, err := g.signer.Attach(artifact, runID); err != nil {
				return out, fmt.Errorf("attest stage: %w", err)
			}
		}
		log.WithField("artifacts", len(renderRes.Written)).Info("attest stage")
	}

	log.Info("verify stage")
	verifyRes, err := g.verifier.VerifyArtifacts(renderRes.Written)
	out.Verify = verifyRes
	if err != nil {
		return out, fmt.Errorf("verify stage: %w", err)
	}

	for _, res := range verifyRes.Results {
		if res.State == attest.StateVerified && !res.Bypassed && res.RenderRunID != runID {
			return out, fmt.Errorf("verify stage: %s: %w (got %q)", res.Artifact, ErrRunMismatch, res.RenderRunID)
		}
	}

	verified := len(verifyRes.Results) > 0 && verifyRes.FailedCount == 0
	out.Provenance = WithVerification(out.Provenance, verified)

	if opts.PRNumber != "" || opts.Approver != "" {
		out.Provenance = WithApproval(out.Provenance, opts.PRNumber, opts.Approver, time.Now())
	}

	if opts.PlanFile == "" {
		return out, nil
	}

	log.Info("evaluate stage")
	doc, err := policy.LoadDocument(opts.PlanFile)
	if err != nil {
		return out, fmt.Errorf("evaluate stage: %w", err)
	}

	// The plan document must reference an artifact from this run.
	if doc.Metadata.Artifact.Path != "" && !g.artifactFromRun(doc.Metadata.Artifact.Path, renderRes.Written) {
		return out, fmt.Errorf("evaluate stage: plan artifact %q: %w", doc.Metadata.Artifact.Path, ErrRunMismatch)
	}

	doc.Metadata.Provenance = out.Provenance
	out.Decision = g.engine.Evaluate(doc)

	log.WithFields(map[string]interface{}{
		"allow":             out.Decision.Allow,
		"approval_required": out.Decision.ApprovalRequired,
		"violations":        out.Decision.Summary.ViolationCount,
	}).Info("decision")

	return out, nil
}

// artifactFromRun matches a plan's artifact reference against the
// files this run rendered, by base name so documents can carry either
// relative or absolute paths.
func (g *Gate) artifactFromRun(path string, written []string) bool {
	base := filepath.Base(strings.TrimSpace(path))
	for _, w := range written {
		if filepath.Base(w) == base {
			return true
		}
	}
	return false
}
