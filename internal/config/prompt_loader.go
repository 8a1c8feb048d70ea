package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// PromptSource represents where a prompt was loaded from
type PromptSource struct {
	Source    string // "file", "operation-config", "global-config", or "default"
	FilePath  string // Set if Source is "file"
	Operation string // The operation this prompt is for
	Type      string // "system" or "user"
}

// GetLoadedPrompts returns the loaded prompt content in a thread-safe way
func GetLoadedPrompts() *AllLoadedPrompts {
	return &loadedPrompts
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	log.Println("[CONFIG] Starting custom prompt loading from files")

	// Initialize loaded prompts exactly once
	loadedPromptsOnce.Do(func() {
		loadedPrompts = AllLoadedPrompts{}
	})
	if loadedPrompts.Operations == nil {
		loadedPrompts.Operations = make(map[Operation]LoadedPrompts)
	}

	// Load global prompts
	if err := c.loadPromptPair(&c.AI.CustomPrompts, &loadedPrompts.Global, "global"); err != nil {
		return fmt.Errorf("failed to load global prompts: %w", err)
	}

	// Load operation-specific prompts
	for _, op := range Operations {
		section := c.operationSection(op)
		target := loadedPrompts.Operations[op]
		if err := c.loadPromptPair(&section.CustomPrompts, &target, string(op)); err != nil {
			return fmt.Errorf("failed to load %s prompts: %w", op, err)
		}
		loadedPrompts.Operations[op] = target
	}

	// Log summary of prompt sources after loading
	c.logPromptLoadingSummary()

	return nil
}

// loadPromptPair loads the system and user prompts of one config section
func (c *Config) loadPromptPair(prompts *PromptConfig, target *LoadedPrompts, operation string) error {
	if prompts.SystemFile != "" {
		content, err := c.loadPromptFromFile(prompts.SystemFile, "system", operation)
		if err != nil {
			return err
		}
		target.System = content
	}

	if prompts.UserFile != "" {
		content, err := c.loadPromptFromFile(prompts.UserFile, "user", operation)
		if err != nil {
			return err
		}
		target.User = content
	}

	return nil
}

// loadPromptFromFile loads a prompt from a file with proper error handling and logging
func (c *Config) loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	// Resolve relative paths
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, operation, filePath, err)
	}

	// Check if file exists
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%s %s prompt file not found: %s", promptType, operation, absPath)
	}

	// Read file content
	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	// Validate content is not empty
	trimmedContent := strings.TrimSpace(string(content))
	if trimmedContent == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	// Log successful loading
	log.Printf("[CONFIG] Successfully loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmedContent))

	return trimmedContent, nil
}

// validatePromptFiles validates that prompt files exist and are readable before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	// Helper function to validate a file path
	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return // No file specified, skip validation
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, operation, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, operation, absPath))
		}
	}

	// Validate global prompt files
	validateFile(c.AI.CustomPrompts.SystemFile, "system", "global")
	validateFile(c.AI.CustomPrompts.UserFile, "user", "global")

	// Validate operation-specific prompt files
	for _, op := range Operations {
		section := c.operationSection(op)
		validateFile(section.CustomPrompts.SystemFile, "system", string(op))
		validateFile(section.CustomPrompts.UserFile, "user", string(op))
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

// logPromptLoadingSummary logs a summary of loaded prompts
func (c *Config) logPromptLoadingSummary() {
	log.Println("[CONFIG] === Custom Prompt Loading Summary ===")

	promptCount := 0

	if loadedPrompts.Global.System != "" {
		log.Println("[CONFIG] Global system prompt: loaded from file")
		promptCount++
	}
	if loadedPrompts.Global.User != "" {
		log.Println("[CONFIG] Global user prompt: loaded from file")
		promptCount++
	}

	for _, op := range Operations {
		prompts := loadedPrompts.Operations[op]
		if prompts.System != "" {
			log.Printf("[CONFIG] %s-specific system prompt: loaded from file", op)
			promptCount++
		}
		if prompts.User != "" {
			log.Printf("[CONFIG] %s-specific user prompt: loaded from file", op)
			promptCount++
		}
	}

	if promptCount == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", promptCount)
	}

	log.Println("[CONFIG] ==========================================")
}
