package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"currency-features/observability"
)

const defaultHTTPTimeout = 30 * time.Second

// maxErrorBody bounds how much of a failed response is kept in the error message
const maxErrorBody = 512

// getJSON issues a GET and decodes a 200 response into dest. Failures come back as a
// *ProviderError; cancellation of ctx is returned unchanged.
func getJSON(ctx context.Context, client *http.Client, provider, op, reqURL string, headers map[string]string, dest any) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(provider, op)
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(provider, op)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return newProviderError(KindRejected, provider, op, fmt.Errorf("failed to create request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.RecordExternalAPIError(provider, op, "network")
		return newProviderError(KindUnavailable, provider, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.RecordExternalAPIError(provider, op, strconv.Itoa(resp.StatusCode))
		return statusError(provider, op, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metrics.RecordExternalAPIError(provider, op, "decode")
		return newProviderError(KindMalformed, provider, op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
