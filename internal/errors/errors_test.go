package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGateErrorMessage(t *testing.T) {
	err := New(ErrorTypeVerification, StageVerify, "artifact verification failed").
		WithCause("digest mismatch").
		WithSolutions("Re-render the artifact", "Re-attest it").
		WithVerify("netgate verify -o json")

	msg := err.Error()
	assert.Contains(t, msg, "artifact verification failed")
	assert.Contains(t, msg, "Cause: digest mismatch")
	assert.Contains(t, msg, "Re-render the artifact")
	assert.Contains(t, msg, "Verify: netgate verify -o json")
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration misuse", New(ErrorTypeConfiguration, StageVerify, "bypass in production"), ExitConfig},
		{"malformed input", New(ErrorTypeInput, StageRender, "bad intent"), ExitBadInput},
		{"verification failure", New(ErrorTypeVerification, StageVerify, "digest mismatch"), ExitVerifyFailed},
		{"policy denial", New(ErrorTypePolicy, StageEvaluate, "missing approval"), ExitPolicyDenied},
		{"netbox unreachable", New(ErrorTypeNetwork, StageExport, "connection refused"), ExitUnavailable},
		{"filesystem failure", New(ErrorTypeFileSystem, StageRender, "cannot write"), ExitBadInput},
		{"plain error", errors.New("boom"), ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(New(ErrorTypeInput, StageRender, "bad intent")))
	assert.False(t, IsUserError(errors.New("boom")))
}

func TestFormatErrorWithContext(t *testing.T) {
	err := New(ErrorTypePolicy, StageGate, "policy denied the plan").
		WithSolutions("Attach pull request approval")

	out := FormatErrorWithContext(err, map[string]string{"run_id": "gh-42"})
	assert.True(t, strings.HasPrefix(out, "[Policy/gate]"))
	assert.Contains(t, out, "run_id: gh-42")
	assert.Contains(t, out, "- Attach pull request approval")
}

func TestFormatErrorWithContextPlainError(t *testing.T) {
	out := FormatErrorWithContext(errors.New("boom"), nil)
	assert.Equal(t, "Error: boom\n", out)
}
