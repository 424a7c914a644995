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

package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAgentParams_Config(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte("agent:\n  id: agent-7\n  workRoot: "+dir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := &AgentParams{}
	p.SetConfigPath(path)
	if got := p.ConfigPath(); got != path {
		t.Errorf("ConfigPath() = %q, want %q", got, path)
	}
	cfg, err := p.Config()
	if err != nil {
		t.Fatalf("Config() = %v", err)
	}
	if cfg.Agent.ID != "agent-7" || cfg.Agent.WorkRoot != dir {
		t.Errorf("unexpected agent config %+v", cfg.Agent)
	}
	again, _ := p.Config()
	if again != cfg {
		t.Error("Config() should be loaded once")
	}
}

func TestAgentParams_BadConfig(t *testing.T) {
	p := &AgentParams{}
	p.SetConfigPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := p.Config(); err == nil {
		t.Error("Config() succeeded for a missing file")
	}
}
