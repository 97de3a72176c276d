package attest

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Signer attaches provenance attestations to rendered artifacts.
type Signer struct {
	priv      ed25519.PrivateKey
	keyID     string
	builderID string
}

// NewSigner returns a Signer for the given private key.
func NewSigner(priv ed25519.PrivateKey, keyID, builderID string) *Signer {
	return &Signer{priv: priv, keyID: keyID, builderID: builderID}
}

// Attach writes a signed attestation sidecar next to the artifact,
// binding its sha256 digest to the given render run.
func (s *Signer) Attach(artifactPath, renderRunID string) (string, error) {
	digest, err := fileDigest(artifactPath)
	if err != nil {
		return "", fmt.Errorf("failed to digest artifact: %w", err)
	}

	stmt := Statement{
		Type: StatementType,
		Subject: []Subject{{
			Name:   filepath.Base(artifactPath),
			Digest: map[string]string{"sha256": digest},
		}},
		PredicateType: PredicateType,
		Predicate: Provenance{
			BuilderID:      s.builderID,
			RenderRunID:    renderRunID,
			BuildTimestamp: time.Now().UTC(),
		},
	}

	payload, err := json.Marshal(stmt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal statement: %w", err)
	}

	sig := ed25519.Sign(s.priv, pae(PayloadType, payload))
	env := Envelope{
		PayloadType: PayloadType,
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Signatures: []Signature{{
			KeyID: s.keyID,
			Sig:   base64.StdEncoding.EncodeToString(sig),
		}},
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	sidecar := artifactPath + SidecarSuffix
	if err := os.WriteFile(sidecar, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write attestation: %w", err)
	}
	return sidecar, nil
}
