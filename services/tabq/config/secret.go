// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Secret holds a credential in an encrypted memguard enclave.
//
// Description:
//
//	The plaintext is only materialized by Reveal, when a client is being
//	constructed. String and GoString never print the value, so a Secret can
//	sit inside logged structs safely. A nil *Secret is an unset credential.
//
// Thread Safety: Safe for concurrent use.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals value. An empty value returns nil.
func NewSecret(value string) *Secret {
	if value == "" {
		return nil
	}
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// IsSet reports whether the secret holds a value.
func (s *Secret) IsSet() bool { return s != nil && s.enclave != nil }

// Reveal decrypts and returns the plaintext. An unset secret returns "".
func (s *Secret) Reveal() (string, error) {
	if !s.IsSet() {
		return "", nil
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("config: opening secret enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

func (s *Secret) String() string {
	if !s.IsSet() {
		return "[unset]"
	}
	return "[REDACTED]"
}

func (s *Secret) GoString() string { return s.String() }
