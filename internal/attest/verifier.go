package attest

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/boycivenga/netgate/internal/logger"
)

// Environment controls verifier strictness.
type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
)

// ParseEnvironment accepts the long and short spellings used across
// the pipeline configuration ("prod"/"dev" appear in the workflow
// inputs).
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(s) {
	case "production", "prod":
		return Production, nil
	case "development", "dev":
		return Development, nil
	default:
		return "", fmt.Errorf("unknown environment %q (want production or development)", s)
	}
}

// State is the verification state of a single artifact. There are no
// retries: an attestation is either present and valid or it is not.
type State string

const (
	StatePending  State = "Pending"
	StateVerified State = "Verified"
	StateFailed   State = "Failed"
)

// Sentinel errors. Fail-closed semantics: a production batch never
// completes silently without artifacts or with a bypass request.
var (
	ErrBypassNotAllowed   = errors.New("BypassNotAllowed: bypass is not permitted in production")
	ErrNoArtifactsFound   = errors.New("NoArtifactsFound: pattern matched no artifacts")
	ErrVerificationFailed = errors.New("one or more artifacts failed attestation verification")
)

// ArtifactResult is the per-artifact verification outcome.
type ArtifactResult struct {
	Artifact    string `json:"artifact"`
	State       State  `json:"state"`
	Bypassed    bool   `json:"bypassed,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RenderRunID string `json:"render_run_id,omitempty"`
}

// BatchResult aggregates a verification run.
type BatchResult struct {
	Results       []ArtifactResult `json:"results"`
	VerifiedCount int              `json:"verified_count"`
	FailedCount   int              `json:"failed_count"`
	Bypassed      bool             `json:"bypassed"`
}

// Verifier checks artifact attestations against a trusted key and
// builder identity.
type Verifier struct {
	env         Environment
	allowBypass bool
	publicKey   ed25519.PublicKey
	builderID   string
	log         logger.Logger
}

// NewVerifier constructs a Verifier. builderID may be empty to skip
// builder identity pinning (development setups without CI).
func NewVerifier(env Environment, allowBypass bool, publicKey ed25519.PublicKey, builderID string, log logger.Logger) *Verifier {
	return &Verifier{
		env:         env,
		allowBypass: allowBypass,
		publicKey:   publicKey,
		builderID:   builderID,
		log:         log,
	}
}

// VerifyGlob expands the pattern and verifies every matched artifact.
// Attestation sidecars themselves are excluded from the match.
//
// In production the bypass flag is rejected outright and any failed
// artifact fails the batch; in development a requested bypass converts
// failures into verified-with-bypass results, recorded on both the
// artifact and the batch so the decision stays auditable.
func (v *Verifier) VerifyGlob(pattern string) (*BatchResult, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad artifact pattern %q: %w", pattern, err)
	}

	var artifacts []string
	for _, m := range matches {
		if strings.HasSuffix(m, SidecarSuffix) {
			continue
		}
		artifacts = append(artifacts, m)
	}
	sort.Strings(artifacts)

	if len(artifacts) == 0 {
		if v.env == Production {
			return nil, fmt.Errorf("%w: %s", ErrNoArtifactsFound, pattern)
		}
		v.log.WithField("pattern", pattern).Warn("no artifacts matched, nothing to verify")
		return &BatchResult{}, nil
	}

	return v.VerifyArtifacts(artifacts)
}

// VerifyArtifacts verifies an explicit artifact list.
func (v *Verifier) VerifyArtifacts(artifacts []string) (*BatchResult, error) {
	// A bypass request in production is a configuration misuse, but the
	// artifacts are still verified (honestly, without bypass) so the
	// batch report shows what the bypass would have hidden.
	bypassRejected := v.env == Production && v.allowBypass
	bypassActive := v.env == Development && v.allowBypass

	batch := &BatchResult{}
	for _, artifact := range artifacts {
		res := v.verifyOne(artifact)

		if res.State == StateFailed && bypassActive {
			v.log.WithFields(map[string]interface{}{
				"artifact": artifact,
				"reason":   res.Reason,
			}).Warn("verification failure bypassed in development mode")
			res.State = StateVerified
			res.Bypassed = true
			batch.Bypassed = true
		}

		switch res.State {
		case StateVerified:
			batch.VerifiedCount++
		case StateFailed:
			batch.FailedCount++
		}
		batch.Results = append(batch.Results, res)
	}

	if bypassRejected {
		return batch, ErrBypassNotAllowed
	}
	if v.env == Production && batch.FailedCount > 0 {
		return batch, ErrVerificationFailed
	}
	return batch, nil
}

// verifyOne checks one artifact: sidecar present, signature valid,
// digest matching, builder identity matching.
func (v *Verifier) verifyOne(artifact string) ArtifactResult {
	res := ArtifactResult{Artifact: artifact, State: StatePending}

	fail := func(format string, args ...interface{}) ArtifactResult {
		res.State = StateFailed
		res.Reason = fmt.Sprintf(format, args...)
		return res
	}

	env, err := ReadEnvelope(artifact + SidecarSuffix)
	if err != nil {
		return fail("attestation not found or unreadable: %v", err)
	}

	if err := env.verifySignature(v.publicKey); err != nil {
		return fail("signature verification failed: %v", err)
	}

	stmt, err := env.DecodeStatement()
	if err != nil {
		return fail("invalid statement: %v", err)
	}
	if stmt.Type != StatementType {
		return fail("unexpected statement type %q", stmt.Type)
	}

	digest, err := fileDigest(artifact)
	if err != nil {
		return fail("failed to digest artifact: %v", err)
	}

	matched := false
	for _, subject := range stmt.Subject {
		if subject.Digest["sha256"] == digest {
			matched = true
			break
		}
	}
	if !matched {
		return fail("artifact digest does not match any attested subject")
	}

	if v.builderID != "" && stmt.Predicate.BuilderID != v.builderID {
		return fail("untrusted builder %q (want %q)", stmt.Predicate.BuilderID, v.builderID)
	}

	res.State = StateVerified
	res.RenderRunID = stmt.Predicate.RenderRunID
	return res
}
