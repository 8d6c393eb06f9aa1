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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiCall describes one request to an embedding endpoint
type apiCall struct {
	provider string
	model    string
	url      string
	apiKey   string // sent as a bearer token when set
	texts    []string
}

func (c apiCall) textLen() int {
	n := 0
	for _, t := range c.texts {
		n += len(t)
	}
	return n
}

// postJSON sends body to the endpoint and decodes a 200 response into out.
// Every failure is wrapped in ErrService.
func postJSON(ctx context.Context, client *http.Client, call apiCall, body, out any) error {
	startTime := time.Now()
	textLen := call.textLen()

	LogAPICallDetails(call.provider, call.model, call.url, len(call.texts), textLen)
	if len(call.texts) > 0 {
		LogRequestTrace(call.provider, call.model, call.texts[0])
	}

	fail := func(err error) error {
		LogAPICall(call.provider, call.model, len(call.texts), textLen, time.Since(startTime), err)
		return fmt.Errorf("%w: %w", ErrService, err)
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.url, bytes.NewReader(reqBytes))
	if err != nil {
		return fail(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if call.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+call.apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		LogConnectionError(call.provider, call.url, err)
		return fail(fmt.Errorf("failed to make API request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fail(fmt.Errorf("API request failed with status %d (error reading response body: %w)", resp.StatusCode, readErr))
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			LogRateLimitError(call.provider, call.model, resp.StatusCode, string(respBody))
		}
		return fail(fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(fmt.Errorf("failed to decode response: %w", err))
	}

	LogResponseTrace(call.provider, call.model, resp.StatusCode)
	LogAPICall(call.provider, call.model, len(call.texts), textLen, time.Since(startTime), nil)
	return nil
}
