// Package attest produces and verifies build-provenance attestations
// for rendered artifacts. Attestations are DSSE envelopes carrying an
// in-toto statement whose subject is the artifact's sha256 digest and
// whose predicate binds the artifact to the rendering pipeline run.
package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	// PayloadType is the DSSE payload type for in-toto statements.
	PayloadType = "application/vnd.in-toto+json"

	// StatementType identifies the in-toto statement schema.
	StatementType = "https://in-toto.io/Statement/v1"

	// PredicateType identifies the provenance predicate schema.
	PredicateType = "https://slsa.dev/provenance/v1"

	// SidecarSuffix is appended to an artifact path to locate its
	// attestation.
	SidecarSuffix = ".attestation.json"
)

// Envelope is a DSSE envelope: a base64 payload plus detached
// signatures over the pre-authentication encoding.
type Envelope struct {
	PayloadType string      `json:"payloadType"`
	Payload     string      `json:"payload"`
	Signatures  []Signature `json:"signatures"`
}

// Signature is one detached signature inside an envelope.
type Signature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"`
}

// Statement is the signed in-toto statement.
type Statement struct {
	Type          string     `json:"_type"`
	Subject       []Subject  `json:"subject"`
	PredicateType string     `json:"predicateType"`
	Predicate     Provenance `json:"predicate"`
}

// Subject identifies the attested artifact by name and digest.
type Subject struct {
	Name   string            `json:"name"`
	Digest map[string]string `json:"digest"`
}

// Provenance is the predicate binding the artifact to its build.
type Provenance struct {
	BuilderID      string    `json:"builder_id"`
	RenderRunID    string    `json:"render_run_id"`
	BuildTimestamp time.Time `json:"build_timestamp"`
}

// pae computes the DSSE pre-authentication encoding for a payload.
func pae(payloadType string, payload []byte) []byte {
	return []byte(fmt.Sprintf("DSSEv1 %d %s %d %s",
		len(payloadType), payloadType, len(payload), payload))
}

// fileDigest returns the hex sha256 digest of a file.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DecodeStatement extracts and parses the statement from an envelope
// without verifying signatures.
func (e *Envelope) DecodeStatement() (*Statement, error) {
	if e.PayloadType != PayloadType {
		return nil, fmt.Errorf("unexpected payload type %q", e.PayloadType)
	}

	payload, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	var stmt Statement
	if err := json.Unmarshal(payload, &stmt); err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}
	return &stmt, nil
}

// verifySignature checks that at least one envelope signature is valid
// for the given public key.
func (e *Envelope) verifySignature(pub ed25519.PublicKey) error {
	payload, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	message := pae(e.PayloadType, payload)
	for _, sig := range e.Signatures {
		raw, err := base64.StdEncoding.DecodeString(sig.Sig)
		if err != nil {
			continue
		}
		if ed25519.Verify(pub, message, raw) {
			return nil
		}
	}
	return fmt.Errorf("no valid signature found among %d", len(e.Signatures))
}

// ReadEnvelope loads an attestation sidecar file.
func ReadEnvelope(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse attestation %s: %w", path, err)
	}
	return &env, nil
}
