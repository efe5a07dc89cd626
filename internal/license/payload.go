package license

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the four-field license record. Every field is an opaque
// ciphertext until it is decoded during validation.
//
// The JSON names match license files written by earlier installs.
type Payload struct {
	FingerprintEnc string `json:"MachineIdEncrypted"`
	LastSeenEnc    string `json:"LastDateEncrypted"`
	DeadlineEnc    string `json:"DeadlineEncrypted"`
	EnrollmentCode string `json:"EnrollCode"`
}

// ToCompactString returns the pipe-delimited transport form.
func (p Payload) ToCompactString() string {
	return strings.Join([]string{p.FingerprintEnc, p.LastSeenEnc, p.DeadlineEnc, p.EnrollmentCode}, "|")
}

// Complete reports whether all four fields are present.
func (p Payload) Complete() bool {
	return p.FingerprintEnc != "" && p.LastSeenEnc != "" && p.DeadlineEnc != "" && p.EnrollmentCode != ""
}

// ParsePayload splits raw on '|', '\r' and '\n', trims every piece and drops
// empty ones. Exactly four pieces must remain.
func ParsePayload(raw string) (Payload, error) {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '|' || r == '\r' || r == '\n'
	})

	fields := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			fields = append(fields, part)
		}
	}

	if len(fields) != 4 {
		return Payload{}, newActivationError(KindMalformedPayload,
			fmt.Sprintf("license code must consist of 4 fields, got %d", len(fields)), nil)
	}

	return Payload{
		FingerprintEnc: fields[0],
		LastSeenEnc:    fields[1],
		DeadlineEnc:    fields[2],
		EnrollmentCode: fields[3],
	}, nil
}

// marshalFile encodes p the way it is persisted on disk.
func marshalFile(p Payload) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal license payload: %w", err)
	}
	return data, nil
}

// unmarshalFile decodes a persisted payload. Files carrying a UTF-8 byte order
// mark are accepted.
func unmarshalFile(data []byte) (Payload, error) {
	data = trimBOM(data)
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal license payload: %w", err)
	}
	return p, nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
