/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"time"

	"pgedge-nl2sql/internal/logging"
)

// LogClientInit logs client construction. API keys are never written.
func LogClientInit(provider, model, baseURL string) {
	logging.Debug("llm_client_initialized",
		"provider", provider,
		"model", model,
		"base_url", baseURL,
	)
}

// LogLLMCall logs a completion request with timing
func LogLLMCall(provider, model string, promptLen, responseLen int, duration time.Duration, err error) {
	if err != nil {
		logging.Error("llm_call_failed",
			"provider", provider,
			"model", model,
			"prompt_length", promptLen,
			"duration", duration,
			"error", err.Error(),
		)
		return
	}
	logging.Info("llm_call",
		"provider", provider,
		"model", model,
		"prompt_length", promptLen,
		"response_length", responseLen,
		"duration", duration,
	)
}

// LogResponseStatus logs the HTTP status of a completion response
func LogResponseStatus(provider, model string, statusCode int) {
	logging.Debug("llm_response",
		"provider", provider,
		"model", model,
		"status_code", statusCode,
	)
}
