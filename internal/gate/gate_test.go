package gate

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boycivenga/netgate/internal/attest"
	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/logger"
	"github.com/boycivenga/netgate/internal/policy"
	"github.com/boycivenga/netgate/internal/render"
)

const testBuilder = "https://github.com/boycivenga/netgate/.github/workflows/render.yml"

func testSet() *intent.Set {
	vid := 10
	return &intent.Set{
		Sites:    []intent.Site{{Name: "Pennington", Slug: "pennington"}},
		VLANs:    []intent.VLAN{{VID: 10, Name: "LAN", Site: "pennington"}},
		Prefixes: []intent.Prefix{{CIDR: "10.10.10.0/24", Site: "pennington", VID: &vid}},
	}
}

func testGate(t *testing.T, env attest.Environment) *Gate {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	log := logger.NewWithOutput("error", os.Stderr)
	return New(
		render.New(log, 2),
		attest.NewSigner(priv, "test", testBuilder),
		attest.NewVerifier(env, false, pub, testBuilder, log),
		policy.NewEngine(),
		log,
	)
}

func writePlanDoc(t *testing.T, dir string, doc map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "plan-input.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestGateRun_FullPipelineAllows(t *testing.T) {
	dir := t.TempDir()
	planFile := writePlanDoc(t, dir, map[string]interface{}{
		"plan": []map[string]interface{}{
			{"address": "unifi_network.lan", "type": "unifi_network", "change": map[string]interface{}{"actions": []string{"create"}}},
		},
		"metadata": map[string]interface{}{
			"artifact": map[string]interface{}{"path": "site-pennington.tfvars.json", "site": "pennington"},
		},
	})

	out, err := testGate(t, attest.Production).Run(context.Background(), testSet(), Options{
		OutputDir: filepath.Join(dir, "tfvars"),
		PRNumber:  "7",
		Approver:  "alice",
		PlanFile:  planFile,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	require.NotNil(t, out.Render)
	assert.Len(t, out.Render.Written, 1)
	require.NotNil(t, out.Verify)
	assert.Equal(t, 1, out.Verify.VerifiedCount)
	assert.True(t, out.Provenance.AttestationVerified)
	assert.Equal(t, out.RunID, out.Provenance.RenderRunID)

	require.NotNil(t, out.Decision)
	assert.True(t, out.Decision.Allow)
	assert.False(t, out.Decision.ApprovalRequired)
}

func TestGateRun_StopsOnMalformedIntent(t *testing.T) {
	dir := t.TempDir()
	set := testSet()
	set.VLANs = append(set.VLANs, intent.VLAN{VID: 10, Name: "dup", Site: "pennington"})

	out, err := testGate(t, attest.Production).Run(context.Background(), set, Options{
		OutputDir: filepath.Join(dir, "tfvars"),
	})
	require.Error(t, err)
	assert.Nil(t, out.Verify, "verify stage must not run after a failed render")
	assert.False(t, out.Provenance.AttestationVerified)
}

func TestGateRun_UnsignedArtifactsFailInProduction(t *testing.T) {
	dir := t.TempDir()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	log := logger.NewWithOutput("error", os.Stderr)

	// No signer wired: rendered artifacts carry no attestation.
	g := New(
		render.New(log, 2),
		nil,
		attest.NewVerifier(attest.Production, false, pub, testBuilder, log),
		policy.NewEngine(),
		log,
	)

	out, err := g.Run(context.Background(), testSet(), Options{OutputDir: filepath.Join(dir, "tfvars")})
	require.Error(t, err)
	require.NotNil(t, out.Verify)
	assert.Equal(t, 1, out.Verify.FailedCount)
}

func TestGateRun_RejectsForeignPlanArtifact(t *testing.T) {
	dir := t.TempDir()
	planFile := writePlanDoc(t, dir, map[string]interface{}{
		"plan": []map[string]interface{}{},
		"metadata": map[string]interface{}{
			"artifact": map[string]interface{}{"path": "site-somewhere-else.tfvars.json", "site": "somewhere-else"},
		},
	})

	_, err := testGate(t, attest.Production).Run(context.Background(), testSet(), Options{
		OutputDir: filepath.Join(dir, "tfvars"),
		PlanFile:  planFile,
	})
	require.ErrorIs(t, err, ErrRunMismatch)
}

func TestGateRun_DeniesWithoutApproval(t *testing.T) {
	dir := t.TempDir()
	planFile := writePlanDoc(t, dir, map[string]interface{}{
		"plan": []map[string]interface{}{
			{"address": "unifi_network.lan", "change": map[string]interface{}{"actions": []string{"create"}}},
		},
		"metadata": map[string]interface{}{
			"artifact": map[string]interface{}{"path": "site-pennington.tfvars.json", "site": "pennington"},
		},
	})

	out, err := testGate(t, attest.Production).Run(context.Background(), testSet(), Options{
		OutputDir: filepath.Join(dir, "tfvars"),
		PlanFile:  planFile,
		// No PRNumber / Approver.
	})
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.False(t, out.Decision.Allow)
}

func TestProvenanceLifecycle(t *testing.T) {
	p := NewProvenance("run-42")
	assert.Equal(t, "run-42", p.RenderRunID)
	assert.False(t, p.AttestationVerified)
	assert.Empty(t, p.Approver)

	approvedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	enriched := WithApproval(p, "7", "alice", approvedAt)
	assert.Equal(t, "alice", enriched.Approver)
	assert.Equal(t, "2025-06-01T12:00:00Z", enriched.ApprovedAt)
	assert.Empty(t, p.Approver, "original record must stay untouched")

	finalized := WithVerification(enriched, true)
	assert.True(t, finalized.AttestationVerified)
	assert.False(t, enriched.AttestationVerified)
}

func TestNewRunID_PrefersWorkflowRun(t *testing.T) {
	t.Setenv("GITHUB_RUN_ID", "1234567")
	assert.Equal(t, "1234567", NewRunID())

	t.Setenv("GITHUB_RUN_ID", "")
	id := NewRunID()
	assert.NotEmpty(t, id)
	assert.NotEqual(t, "1234567", id)
}
