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
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsolePrefix marks lines written by the agent rather than by a task.
const ConsolePrefix = "[go] "

// console is the job's console stream. Everything written through it is
// masked.
type console struct {
	out    *maskingWriter
	prefix string
}

func newConsole(w io.Writer) *console {
	return &console{out: newMaskingWriter(w), prefix: ConsolePrefix}
}

// Printf writes one prefixed line.
func (c *console) Printf(format string, args ...interface{}) {
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintf(c.out, "%s%s\n", c.prefix, line)
}

// Warnf writes a line the way verification warnings are written, without
// the agent prefix.
func (c *console) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "[WARN] "+format+"\n", args...)
}

// Write passes task output through unchanged apart from masking.
func (c *console) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

// AddSecret masks value from now on.
func (c *console) AddSecret(value, substitution string) {
	c.out.AddSecret(value, substitution)
}

// Flush releases output held back for masking.
func (c *console) Flush() error {
	return c.out.Flush()
}

// captureBuffer collects the output of a test guard's sub-command.
type captureBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *captureBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *captureBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// capture returns a console that writes into buf without a prefix, sharing
// the secrets of c.
func (c *console) capture(buf *captureBuffer) *console {
	mw := newMaskingWriter(buf)
	c.out.mu.Lock()
	mw.secrets = append(mw.secrets, c.out.secrets...)
	mw.maxSecretLen = c.out.maxSecretLen
	c.out.mu.Unlock()
	return &console{out: mw}
}
