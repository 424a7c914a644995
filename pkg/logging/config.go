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

// Package logging creates the agent's logger.
package logging

import (
	"github.com/fleetci/pipeline/pkg/apis/config"
	"go.uber.org/zap"
	"knative.dev/pkg/logging"
)

// AgentLogKey is the name of the logger for the agent cmd
const AgentLogKey = "agent"

// NewLogger creates a logger at the given level.
// In addition to the logger, it returns AtomicLevel that can
// be used to change the logging level at runtime.
// An empty or invalid level falls back to info.
func NewLogger(level string) (*zap.SugaredLogger, zap.AtomicLevel) {
	logger, atomicLevel := logging.NewLogger("", level)
	return logger.Named(AgentLogKey), atomicLevel
}

// NewLoggerFromConfig creates a logger using the provided Config
func NewLoggerFromConfig(cfg *config.Config) (*zap.SugaredLogger, zap.AtomicLevel) {
	return NewLogger(cfg.LogLevel().String())
}
