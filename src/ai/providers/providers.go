// Package providers links every supported model backend into the binary.
package providers

import (
	_ "github.com/stake-plus/hermes/src/ai/gemini25"
	_ "github.com/stake-plus/hermes/src/ai/grok4"
)
