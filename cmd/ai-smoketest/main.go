package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	aicore "github.com/stake-plus/hermes/src/ai/core"
	_ "github.com/stake-plus/hermes/src/ai/providers"
	"github.com/stake-plus/hermes/src/config"
	"github.com/stake-plus/hermes/src/logging"
	"github.com/stake-plus/hermes/src/oracle"
)

var (
	providersFlag = flag.String("providers", "all", "Comma-separated provider list or 'all'")
	modeFlag      = flag.String("mode", "both", "respond|oracle|both")
	modelFlag     = flag.String("model", "", "Override model name")
	textFlag      = flag.String("text", defaultText, "Claim to send through the oracle")
	timeoutFlag   = flag.Duration("timeout", 45*time.Second, "Per-provider timeout")
	tempFlag      = flag.Float64("temp", 0.2, "Completion temperature")
	maxLenFlag    = flag.Int("max-bytes", 1200, "Maximum bytes of output to print per response (0=unlimited)")
)

var allProviders = []string{"gemini25", "grok4"}

func main() {
	log.SetFlags(0)
	flag.Parse()

	mode, err := parseMode(*modeFlag)
	if err != nil {
		log.Fatalf("invalid mode: %v", err)
	}
	aiEnv := config.LoadAIFromEnv()

	if mode == modeRespond || mode == modeBoth {
		providers := resolveProviders(*providersFlag)
		if len(providers) == 0 {
			log.Fatal("no providers specified")
		}
		for _, provider := range providers {
			if err := runProvider(provider, aiEnv); err != nil {
				log.Printf("[%s] ERROR: %v", provider, err)
			}
		}
	}
	if mode == modeOracle || mode == modeBoth {
		runOracle(aiEnv)
	}
}

func runProvider(provider string, aiEnv config.AI) error {
	client, err := aicore.NewClient(aicore.FactoryConfig{
		Provider:    provider,
		Model:       *modelFlag,
		Temperature: *tempFlag,
		GeminiKey:   aiEnv.GeminiKey,
		GrokKey:     aiEnv.GrokKey,
		Extra:       map[string]string{},
	})
	if err != nil {
		return fmt.Errorf("client init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	fmt.Printf("=== %s ===\n", provider)
	start := time.Now()
	reply, err := client.Respond(ctx, *textFlag, aicore.Options{
		Model:        *modelFlag,
		SystemPrompt: defaultSystemPrompt,
		Temperature:  *tempFlag,
	})
	if err != nil {
		fmt.Printf("respond ❌ %v\n", err)
		return nil
	}
	fmt.Printf("respond ✅ (%.1fs)\n%s\n", time.Since(start).Seconds(), truncate(reply, *maxLenFlag))
	return nil
}

func runOracle(aiEnv config.AI) {
	if *modelFlag != "" {
		aiEnv.Model = *modelFlag
	}
	logger, err := logging.New("development")
	if err != nil {
		logger = logging.Nop()
	}
	client := oracle.New(aiEnv, oracle.WithLogger(logger))
	fmt.Printf("=== oracle (%s) ===\n", strings.Join(client.Providers(), " -> "))
	if !client.Configured() {
		fmt.Println("oracle ❌ no provider has credentials; answers will be fail-open defaults")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	start := time.Now()
	decision := client.Moderate(ctx, *textFlag)
	reason := ""
	if decision.RejectionReason != nil {
		reason = *decision.RejectionReason
	}
	fmt.Printf("moderate (%.1fs) valid=%t type=%s %s\n", time.Since(start).Seconds(), decision.IsValid, decision.ContentType, reason)

	start = time.Now()
	v := client.Classify(ctx, *textFlag)
	fmt.Printf("classify (%.1fs) misinformation=%t confidence=%.2f category=%s\n%s\n",
		time.Since(start).Seconds(), v.IsMisinformation, v.Confidence, v.Category, truncate(v.Explanation, *maxLenFlag))
}

func resolveProviders(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.EqualFold(raw, "all") {
		return append([]string{}, allProviders...)
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	var out []string
	seen := map[string]struct{}{}
	for _, p := range parts {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func parseMode(input string) (runMode, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "respond":
		return modeRespond, nil
	case "oracle":
		return modeOracle, nil
	case "both":
		return modeBoth, nil
	default:
		return modeRespond, errors.New("expected respond, oracle, or both")
	}
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:limit]) + "...(truncated)"
}

type runMode int

const (
	modeRespond runMode = iota
	modeOracle
	modeBoth
)

const defaultText = "Drinking hot water with lemon every morning cures COVID-19 within three days."

const defaultSystemPrompt = "You are a concise fact-checking assistant used for operator smoke tests. Answer in two sentences."
