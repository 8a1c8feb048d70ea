package config

// Operation identifies one LLM-backed operation the service exposes
type Operation string

const (
	OperationChat        Operation = "chat"
	OperationAnalyze     Operation = "analyze"
	OperationKeywords    Operation = "keywords"
	OperationTailor      Operation = "tailor"
	OperationSummary     Operation = "summary"
	OperationCoverLetter Operation = "coverLetter"
	OperationATSScore    Operation = "atsScore"
)

// Operations lists every LLM-backed operation in a stable order
var Operations = []Operation{
	OperationChat,
	OperationAnalyze,
	OperationKeywords,
	OperationTailor,
	OperationSummary,
	OperationCoverLetter,
	OperationATSScore,
}

// operationSection returns the raw config section for an operation
func (c *Config) operationSection(op Operation) *OperationAIConfig {
	switch op {
	case OperationChat:
		return &c.AI.Chat
	case OperationAnalyze:
		return &c.AI.Analyze
	case OperationKeywords:
		return &c.AI.Keywords
	case OperationTailor:
		return &c.AI.Tailor
	case OperationSummary:
		return &c.AI.Summary
	case OperationCoverLetter:
		return &c.AI.CoverLetter
	case OperationATSScore:
		return &c.AI.ATSScore
	default:
		return nil
	}
}

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.MaxRetries == nil {
		opCfg.MaxRetries = &c.AI.MaxRetries
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
	// UseSystemPrompts: apply global default only if not explicitly set
	if opCfg.UseSystemPrompts == nil {
		opCfg.UseSystemPrompts = &c.AI.UseSystemPrompts
	}
}

// GetOperationConfig returns the AI configuration for one operation with
// fallback to the global config. The returned value is a copy; callers may
// not mutate the loaded configuration through it.
func (c *Config) GetOperationConfig(op Operation) OperationAIConfig {
	section := c.operationSection(op)
	if section == nil {
		// Unknown operations inherit the global settings wholesale
		section = &OperationAIConfig{}
	}
	config := *section

	// Apply common defaults
	c.applyOperationDefaults(&config)

	// Apply prompt fallbacks from the global custom prompts
	if config.CustomPrompts.System == "" {
		config.CustomPrompts.System = c.AI.CustomPrompts.System
	}
	if config.CustomPrompts.User == "" {
		config.CustomPrompts.User = c.AI.CustomPrompts.User
	}
	// Also copy file paths for potential later loading
	if config.CustomPrompts.SystemFile == "" {
		config.CustomPrompts.SystemFile = c.AI.CustomPrompts.SystemFile
	}
	if config.CustomPrompts.UserFile == "" {
		config.CustomPrompts.UserFile = c.AI.CustomPrompts.UserFile
	}

	return config
}

// GetLoadedPromptsFor returns a copy of the file-loaded prompts for an operation
func (c *Config) GetLoadedPromptsFor(op Operation) OperationLoadedPrompts {
	return GetPromptsForOperation(op)
}

// GetLoadedGlobalPrompts returns a copy of the loaded global prompts
func (c *Config) GetLoadedGlobalPrompts() LoadedPrompts {
	return loadedPrompts.Global
}
