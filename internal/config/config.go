// Package config holds the static model, provider, routing, and budget
// tables plus the tunable limits of the agentic loop.
package config

import "time"

// Loop and executor limits.
const (
	MaxToolIterations     = 30
	ToolTimeout           = 30 * time.Second
	PackageInstallTimeout = 180 * time.Second
	ProviderTimeout       = 60 * time.Second

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
	MaxRetries         = 3

	SummarizeThreshold = 5

	LargeFileLineLimit = 2000
	FileContentCap     = 30000
	GenericResultCap   = 10000
	ListFilesCap       = 100
	ListDirsCap        = 50
	GrepMatchCap       = 100
	TreeEntryCap       = 500
	TreeMaxDepth       = 3
	ReadURLWindow      = 4000
	TerminalBufferCap  = 500
)

// ModelConfig describes one model on one provider.
type ModelConfig struct {
	Name        string
	Provider    string
	Temperature float64
	MaxTokens   int
}

// ProviderConfig describes a provider endpoint and its model catalogue.
type ProviderConfig struct {
	Name    string
	Enabled bool
	BaseURL string
	Models  map[string]ModelConfig
}

// Provider names.
const (
	ProviderOllama     = "ollama"
	ProviderCerebras   = "cerebras"
	ProviderGroq       = "groq"
	ProviderCloudflare = "cloudflare"
)

func model(name, provider string) ModelConfig {
	return ModelConfig{Name: name, Provider: provider, Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// Providers is the static provider catalogue. Cloudflare stays disabled
// until account credentials are wired in; its base URL is derived from
// the account id at client construction time.
var Providers = map[string]ProviderConfig{
	ProviderOllama: {
		Name:    ProviderOllama,
		Enabled: true,
		BaseURL: "http://localhost:11434",
		Models: map[string]ModelConfig{
			"glm-4.7:cloud":            model("glm-4.7:cloud", ProviderOllama),
			"gpt-oss:120b-cloud":       model("gpt-oss:120b-cloud", ProviderOllama),
			"qwen3-coder:480b-cloud":   model("qwen3-coder:480b-cloud", ProviderOllama),
			"deepseek-v3.1:671b-cloud": model("deepseek-v3.1:671b-cloud", ProviderOllama),
			"deepseek-v3.2:cloud":      model("deepseek-v3.2:cloud", ProviderOllama),
		},
	},
	ProviderCerebras: {
		Name:    ProviderCerebras,
		Enabled: true,
		BaseURL: "https://api.cerebras.ai/v1",
		Models: map[string]ModelConfig{
			"zai-glm-4.7":                    model("zai-glm-4.7", ProviderCerebras),
			"qwen-3-235b-a22b-instruct-2507": model("qwen-3-235b-a22b-instruct-2507", ProviderCerebras),
			"qwen-3-32b":                     model("qwen-3-32b", ProviderCerebras),
		},
	},
	ProviderGroq: {
		Name:    ProviderGroq,
		Enabled: true,
		BaseURL: "https://api.groq.com/openai/v1",
		Models: map[string]ModelConfig{
			"openai/gpt-oss-120b":                       model("openai/gpt-oss-120b", ProviderGroq),
			"openai/gpt-oss-20b":                        model("openai/gpt-oss-20b", ProviderGroq),
			"llama-3.3-70b-versatile":                   model("llama-3.3-70b-versatile", ProviderGroq),
			"meta-llama/llama-4-scout-17b-16e-instruct": model("meta-llama/llama-4-scout-17b-16e-instruct", ProviderGroq),
		},
	},
	ProviderCloudflare: {
		Name:    ProviderCloudflare,
		Enabled: false,
		Models:  map[string]ModelConfig{},
	},
}

// ModelRef is one entry in a fallback chain.
type ModelRef struct {
	Provider string
	ModelKey string
}

// TaskChains maps each task type to its ordered fallback chain. The
// first entry is the primary model.
var TaskChains = map[TaskType][]ModelRef{
	TaskChat: {
		{ProviderCerebras, "zai-glm-4.7"},
		{ProviderOllama, "glm-4.7:cloud"},
		{ProviderGroq, "openai/gpt-oss-120b"},
	},
	TaskCodeExplainSimple: {
		{ProviderOllama, "glm-4.7:cloud"},
		{ProviderGroq, "openai/gpt-oss-120b"},
		{ProviderCerebras, "zai-glm-4.7"},
	},
	TaskCodeExplainComplex: {
		{ProviderGroq, "openai/gpt-oss-120b"},
		{ProviderCerebras, "qwen-3-235b-a22b-instruct-2507"},
		{ProviderOllama, "qwen3-coder:480b-cloud"},
	},
	TaskCodeGeneration: {
		{ProviderCerebras, "zai-glm-4.7"},
		{ProviderOllama, "glm-4.7:cloud"},
		{ProviderGroq, "openai/gpt-oss-120b"},
	},
	TaskCodeGenerationMulti: {
		{ProviderCerebras, "zai-glm-4.7"},
		{ProviderOllama, "qwen3-coder:480b-cloud"},
		{ProviderGroq, "openai/gpt-oss-120b"},
	},
	TaskBugFixing: {
		{ProviderOllama, "deepseek-v3.1:671b-cloud"},
		{ProviderCerebras, "qwen-3-235b-a22b-instruct-2507"},
		{ProviderGroq, "openai/gpt-oss-120b"},
	},
	TaskRefactor: {
		{ProviderCerebras, "zai-glm-4.7"},
		{ProviderOllama, "glm-4.7:cloud"},
		{ProviderGroq, "llama-3.3-70b-versatile"},
	},
	TaskArchitecture: {
		{ProviderOllama, "deepseek-v3.1:671b-cloud"},
		{ProviderCerebras, "qwen-3-235b-a22b-instruct-2507"},
		{ProviderGroq, "openai/gpt-oss-120b"},
	},
	TaskTestGeneration: {
		{ProviderOllama, "glm-4.7:cloud"},
		{ProviderCerebras, "zai-glm-4.7"},
		{ProviderGroq, "llama-3.3-70b-versatile"},
	},
	TaskDocumentation: {
		{ProviderGroq, "openai/gpt-oss-20b"},
		{ProviderOllama, "deepseek-v3.2:cloud"},
		{ProviderCerebras, "zai-glm-4.7"},
	},
	TaskResearch: {
		{ProviderCerebras, "zai-glm-4.7"},
		{ProviderOllama, "glm-4.7:cloud"},
		{ProviderGroq, "llama-3.3-70b-versatile"},
	},
}

// ClassifierChain is the short-context, low-temperature chain used for
// task classification. Keyword fallback applies when it is exhausted.
var ClassifierChain = []ModelRef{
	{ProviderCerebras, "qwen-3-32b"},
	{ProviderGroq, "openai/gpt-oss-120b"},
}

// ChainFor returns the fallback chain for a task, defaulting to the
// chat chain for unknown types.
func ChainFor(t TaskType) []ModelRef {
	if chain, ok := TaskChains[t]; ok {
		return chain
	}
	return TaskChains[TaskChat]
}

// ProviderFor returns the provider configuration, nil when unknown.
func ProviderFor(name string) *ProviderConfig {
	if p, ok := Providers[name]; ok {
		return &p
	}
	return nil
}

// ProviderEnabled reports whether a provider is known and enabled.
func ProviderEnabled(name string) bool {
	p, ok := Providers[name]
	return ok && p.Enabled
}
