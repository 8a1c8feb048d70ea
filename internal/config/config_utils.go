package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// applyFallbacks applies environment variable fallbacks and derived defaults
func (c *Config) applyFallbacks() {
	c.applyDebugFallback()
	c.applyServerAPIKeyFallbacks()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

// applyDebugFallback maps the legacy DEBUG flag onto the log level
func (c *Config) applyDebugFallback() {
	if debugEnv := os.Getenv("DEBUG"); debugEnv != "" {
		if debug, err := strconv.ParseBool(debugEnv); err == nil && debug {
			c.App.LogLevel = "debug"
		}
	}
}

// applyServerAPIKeyFallbacks applies API key fallbacks from environment variables
func (c *Config) applyServerAPIKeyFallbacks() {
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv("RESUMECHAT_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = strings.Split(apiKeysEnv, ",")
			// Trim whitespace from each key
			for i, key := range c.Server.APIKeys {
				c.Server.APIKeys[i] = strings.TrimSpace(key)
			}
		}
	}
}

// applyTLSDefaults applies default TLS configuration values
func (c *Config) applyTLSDefaults() {
	// Set default client auth policy for mutual TLS if not specified
	if c.Server.TLS.Mode == "mutual" && c.Server.TLS.ClientAuthPolicy == "" {
		c.Server.TLS.ClientAuthPolicy = "require"
	}

	// Set default TLS version if not specified
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}

	// Debug log level implies console trace output unless explicitly configured
	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	// Try to get hostname, fallback to default
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	// Log config file source
	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	// Log environment variables that are set
	envVars := []string{
		"RESUMECHAT_AI_PROVIDER",
		"RESUMECHAT_AI_MODEL",
		"RESUMECHAT_SERVER_PORT",
		"RESUMECHAT_SERVER_HOST",
		"RESUMECHAT_APP_LOGLEVEL",
		"RESUMECHAT_VAULT_ENABLED",
		// Legacy names from the original deployment recipe
		"LANGCHAIN_PROVIDER",
		"OPENAI_API_KEY",
		"MODEL",
		"OLLAMA_MODEL",
		"OLLAMA_BASE_URL",
		"LLM_TEMPERATURE",
		"DEBUG",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			// Mask sensitive values
			if strings.Contains(strings.ToLower(envVar), "apikey") || strings.Contains(strings.ToLower(envVar), "key") {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	// Log key configuration values (with sensitive data masked)
	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] AI Provider: %s", c.ProviderID())
	log.Printf("[CONFIG] AI Model: %s", c.AI.Model)
	switch c.ProviderID() {
	case ProviderOpenAI:
		if c.AI.OpenAI.APIKey != "" {
			log.Println("[CONFIG] OpenAI API Key: ***CONFIGURED***")
		} else {
			log.Println("[CONFIG] OpenAI API Key: ***NOT SET***")
		}
		if c.AI.OpenAI.BaseURL != "" {
			log.Printf("[CONFIG] OpenAI Base URL: %s", c.AI.OpenAI.BaseURL)
		}
	case ProviderOllama:
		log.Printf("[CONFIG] Ollama Base URL: %s", c.AI.Ollama.BaseURL)
		log.Printf("[CONFIG] Ollama Model: %s", c.OllamaModel())
	}
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] TLS Mode: %s", c.Server.TLS.Mode)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)

	log.Println("[CONFIG] =====================================")
}
