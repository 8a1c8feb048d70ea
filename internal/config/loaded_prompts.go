package config

import (
	"sync"
)

var (
	loadedPrompts     AllLoadedPrompts
	loadedPromptsOnce sync.Once
)

// LoadedPrompts holds the content of prompts loaded from files
type LoadedPrompts struct {
	System string
	User   string
}

// OperationLoadedPrompts holds loaded prompts for a specific operation
type OperationLoadedPrompts = LoadedPrompts

// AllLoadedPrompts holds all loaded prompts for all operations
type AllLoadedPrompts struct {
	Global     LoadedPrompts
	Operations map[Operation]LoadedPrompts
}

// GetPromptsForOperation returns a copy of the loaded prompts for an operation.
// Operations without file-loaded prompts fall back to the global ones.
func GetPromptsForOperation(op Operation) OperationLoadedPrompts {
	if prompts, ok := loadedPrompts.Operations[op]; ok {
		if prompts.System != "" || prompts.User != "" {
			return prompts
		}
	}
	return loadedPrompts.Global
}
