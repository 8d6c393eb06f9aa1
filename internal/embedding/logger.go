/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package embedding

import (
	"time"

	"pgedge-nl2sql/internal/logging"
)

// LogAPICall logs an embedding API call with timing
func LogAPICall(provider, model string, inputCount, textLen int, duration time.Duration, err error) {
	if err != nil {
		logging.Error("embedding_call_failed",
			"provider", provider,
			"model", model,
			"input_count", inputCount,
			"text_length", textLen,
			"duration", duration,
			"error", err.Error(),
		)
		return
	}
	logging.Info("embedding_call",
		"provider", provider,
		"model", model,
		"input_count", inputCount,
		"text_length", textLen,
		"duration", duration,
	)
}

// LogAPICallDetails logs the start of an API call
func LogAPICallDetails(provider, model, url string, inputCount, textLen int) {
	logging.Debug("embedding_call_start",
		"provider", provider,
		"model", model,
		"url", url,
		"input_count", inputCount,
		"text_length", textLen,
	)
}

// LogRequestTrace logs a preview of the first text in a request
func LogRequestTrace(provider, model, textPreview string) {
	logging.Debug("embedding_request",
		"provider", provider,
		"model", model,
		"text_preview", logging.Truncate(textPreview, 100),
	)
}

// LogResponseTrace logs response status
func LogResponseTrace(provider, model string, statusCode int) {
	logging.Debug("embedding_response",
		"provider", provider,
		"model", model,
		"status_code", statusCode,
	)
}

// LogRateLimitError logs rate limit errors with specific details
func LogRateLimitError(provider, model string, statusCode int, responseBody string) {
	logging.Warn("embedding_rate_limited",
		"provider", provider,
		"model", model,
		"status_code", statusCode,
		"response", logging.Truncate(responseBody, 200),
	)
}

// LogConnectionError logs connection errors
func LogConnectionError(provider, url string, err error) {
	logging.Error("embedding_connection_failed",
		"provider", provider,
		"url", url,
		"error", err.Error(),
	)
}

// LogProviderInit logs provider initialization. API keys are never written.
func LogProviderInit(provider, model string, config map[string]string) {
	if !logging.Enabled(logging.LevelDebug) {
		return
	}
	keyvals := []any{"provider", provider, "model", model}
	for k, v := range config {
		if k == "api_key" {
			v = "***REDACTED***"
		}
		keyvals = append(keyvals, k, v)
	}
	logging.Debug("embedding_provider_initialized", keyvals...)
}
