/*
Copyright 2026 The FleetCI Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package buildsession

import (
	"bytes"
	"io"
	"sort"
	"sync"
)

// MaskReplacement replaces a secret that was registered without a
// substitution.
const MaskReplacement = "******"

type secret struct {
	value       []byte
	replacement []byte
}

// maskingWriter replaces secrets in a byte stream. Secrets may be added while
// the stream is open. It holds back up to the length of the longest secret
// minus one byte so a secret split across writes is still masked; Flush
// releases the held bytes.
type maskingWriter struct {
	mu           sync.Mutex
	underlying   io.Writer
	secrets      []secret
	maxSecretLen int
	carry        []byte
}

func newMaskingWriter(w io.Writer) *maskingWriter {
	return &maskingWriter{underlying: w}
}

// AddSecret registers value for masking. An empty value is ignored and an
// empty substitution masks with MaskReplacement.
func (m *maskingWriter) AddSecret(value, substitution string) {
	if value == "" {
		return
	}
	if substitution == "" {
		substitution = MaskReplacement
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.secrets {
		if string(s.value) == value {
			m.secrets[i].replacement = []byte(substitution)
			return
		}
	}
	m.secrets = append(m.secrets, secret{value: []byte(value), replacement: []byte(substitution)})
	sort.Slice(m.secrets, func(i, j int) bool {
		a, b := m.secrets[i].value, m.secrets[j].value
		if len(a) == len(b) {
			return bytes.Compare(a, b) < 0
		}
		return len(a) > len(b)
	})
	if len(value) > m.maxSecretLen {
		m.maxSecretLen = len(value)
	}
}

func (m *maskingWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSecretLen == 0 {
		_, err = m.underlying.Write(p)
		return len(p), err
	}

	m.carry = append(m.carry, p...)
	hold := m.maxSecretLen - 1

	var out bytes.Buffer
	for {
		safeEmitUntil := len(m.carry) - hold
		if safeEmitUntil <= 0 {
			break
		}
		start, s, ok := m.findEarliestMatch(m.carry)
		if !ok || start >= safeEmitUntil {
			out.Write(m.carry[:safeEmitUntil])
			m.carry = append(m.carry[:0], m.carry[safeEmitUntil:]...)
			break
		}
		out.Write(m.carry[:start])
		out.Write(s.replacement)
		m.carry = append(m.carry[:0], m.carry[start+len(s.value):]...)
	}

	if out.Len() > 0 {
		_, err = m.underlying.Write(out.Bytes())
	}
	return len(p), err
}

// Flush masks and writes whatever is held back.
func (m *maskingWriter) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.carry) == 0 {
		return nil
	}
	var out bytes.Buffer
	for len(m.carry) > 0 {
		start, s, ok := m.findEarliestMatch(m.carry)
		if !ok {
			out.Write(m.carry)
			break
		}
		out.Write(m.carry[:start])
		out.Write(s.replacement)
		m.carry = append(m.carry[:0], m.carry[start+len(s.value):]...)
	}
	m.carry = m.carry[:0]
	_, err := m.underlying.Write(out.Bytes())
	return err
}

// findEarliestMatch returns the secret starting first in data, preferring
// the longest one on a tie.
func (m *maskingWriter) findEarliestMatch(data []byte) (int, secret, bool) {
	bestStart := -1
	var best secret
	for _, s := range m.secrets {
		idx := bytes.Index(data, s.value)
		if idx == -1 {
			continue
		}
		if bestStart == -1 || idx < bestStart {
			bestStart, best = idx, s
		}
		if bestStart == 0 {
			break
		}
	}
	return bestStart, best, bestStart != -1
}
