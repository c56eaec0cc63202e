package main

// Provider blank imports. Each import activates a self-registering vendor.

import (
	_ "github.com/agent0/runner/internal/adapter/azure"
	_ "github.com/agent0/runner/internal/adapter/bedrock"
	_ "github.com/agent0/runner/internal/adapter/google"
	_ "github.com/agent0/runner/internal/adapter/openai"
	_ "github.com/agent0/runner/internal/adapter/vertex"
	_ "github.com/agent0/runner/internal/adapter/xai"
)
