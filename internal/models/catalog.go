package models

import "slices"

type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderDeepSeek   Provider = "deepseek"
	ProviderPerplexity Provider = "perplexity"
)

// Providers lists every provider; the first one is the fallback for unknown models.
var Providers = []Provider{ProviderOpenAI, ProviderDeepSeek, ProviderPerplexity}

// DisplayName is the provider name shown to the user.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderDeepSeek:
		return "DeepSeek"
	case ProviderPerplexity:
		return "Perplexity"
	case ProviderOpenAI:
		return "OpenAI"
	default:
		return string(p)
	}
}

func ParseProvider(s string) (Provider, bool) {
	p := Provider(s)
	return p, slices.Contains(Providers, p)
}

type ModelID string

const (
	GPT35Turbo        ModelID = "gpt-3.5-turbo"
	GPT35Turbo16K     ModelID = "gpt-3.5-turbo-16k"
	GPT4              ModelID = "gpt-4"
	GPT4Turbo         ModelID = "gpt-4-turbo-preview"
	GPT432K           ModelID = "gpt-4-32k"
	GPT4Vision        ModelID = "gpt-4-vision-preview"
	GPT4o             ModelID = "gpt-4o"
	GPT4oMini         ModelID = "gpt-4o-mini"
	GPT45Preview      ModelID = "gpt-4.5-preview"
	O1                ModelID = "o1"
	O3Mini            ModelID = "o3-mini"
	DeepSeekChat      ModelID = "deepseek-chat"
	DeepSeekReasoner  ModelID = "deepseek-reasoner"
	SonarDeepResearch ModelID = "sonar-deep-research"
	SonarReasoningPro ModelID = "sonar-reasoning-pro"
	SonarReasoning    ModelID = "sonar-reasoning"
	SonarPro          ModelID = "sonar-pro"
	Sonar             ModelID = "sonar"
	R11776            ModelID = "r1-1776"

	DefaultModel = GPT35Turbo
)

type ModelInfo struct {
	ID          ModelID  `json:"id"`
	Provider    Provider `json:"provider"`
	Description string   `json:"description"`
}

// Catalog is the fixed set of selectable models, in display order.
var Catalog = []ModelInfo{
	{GPT35Turbo, ProviderOpenAI, "Fast and cost-effective model for most everyday tasks"},
	{GPT35Turbo16K, ProviderOpenAI, "GPT-3.5 with extended 16K token context window"},
	{GPT4, ProviderOpenAI, "Advanced reasoning and knowledge with 8K context window"},
	{GPT4Turbo, ProviderOpenAI, "Improved GPT-4 with 128K context window and updated knowledge"},
	{GPT432K, ProviderOpenAI, "GPT-4 with extended 32K token context window"},
	{GPT4Vision, ProviderOpenAI, "GPT-4 with the ability to understand and analyze images"},
	{GPT4o, ProviderOpenAI, "Latest GPT-4 model with improved reasoning and knowledge"},
	{GPT4oMini, ProviderOpenAI, "Smaller, faster version of GPT-4o with excellent capabilities"},
	{GPT45Preview, ProviderOpenAI, "Preview of GPT-4.5 with enhanced capabilities"},
	{O1, ProviderOpenAI, "OpenAI's most advanced model with superior reasoning"},
	{O3Mini, ProviderOpenAI, "Compact version of O-series models with excellent performance"},
	{DeepSeekChat, ProviderDeepSeek, "General-purpose chat model from DeepSeek with strong reasoning abilities"},
	{DeepSeekReasoner, ProviderDeepSeek, "Optimized for complex reasoning tasks with enhanced problem-solving capabilities"},
	{SonarDeepResearch, ProviderPerplexity, "Perplexity's most powerful model for in-depth research and complex knowledge tasks"},
	{SonarReasoningPro, ProviderPerplexity, "Enhanced reasoning capabilities with professional-grade performance"},
	{SonarReasoning, ProviderPerplexity, "Optimized for logical reasoning and problem-solving tasks"},
	{SonarPro, ProviderPerplexity, "Professional-grade model with 200k context window for comprehensive analysis"},
	{Sonar, ProviderPerplexity, "Perplexity's general-purpose model with strong knowledge retrieval capabilities"},
	{R11776, ProviderPerplexity, "Specialized model with 128k context window for diverse tasks"},
}

var modelProviders = func() map[ModelID]Provider {
	m := make(map[ModelID]Provider, len(Catalog))
	for _, info := range Catalog {
		m[info.ID] = info.Provider
	}
	return m
}()

// ProviderFor maps a model to its provider. Unknown models fall back to the
// first provider.
func ProviderFor(model ModelID) Provider {
	if p, ok := modelProviders[model]; ok {
		return p
	}
	return Providers[0]
}

func IsKnownModel(model ModelID) bool {
	_, ok := modelProviders[model]
	return ok
}

// ParseModel returns the model for s, or DefaultModel when s is not in the catalog.
func ParseModel(s string) ModelID {
	if m := ModelID(s); IsKnownModel(m) {
		return m
	}
	return DefaultModel
}

type Language string

const DefaultLanguage Language = "en-US"

type LanguageInfo struct {
	Tag  Language `json:"tag"`
	Name string   `json:"name"`
}

var Languages = []LanguageInfo{
	{"en-US", "English (US)"},
	{"en-GB", "English (UK)"},
	{"pl-PL", "Polish"},
	{"es-ES", "Spanish"},
	{"fr-FR", "French"},
	{"de-DE", "German"},
	{"it-IT", "Italian"},
	{"pt-PT", "Portuguese"},
	{"ru-RU", "Russian"},
	{"ja-JP", "Japanese"},
	{"ko-KR", "Korean"},
	{"zh-CN", "Chinese"},
}

func IsKnownLanguage(lang Language) bool {
	return slices.ContainsFunc(Languages, func(l LanguageInfo) bool { return l.Tag == lang })
}

// ParseLanguage returns the language for s, or DefaultLanguage when unrecognized.
func ParseLanguage(s string) Language {
	if l := Language(s); IsKnownLanguage(l) {
		return l
	}
	return DefaultLanguage
}
