// Package resilience provides reliability and fault tolerance patterns for
// the gateway's upstream calls. It includes circuit breakers and retry logic
// so a flaky completion, speech, or Notion API does not take the service down.
//
// The package supports:
//   - Circuit breakers for external API calls (OpenAI, Anthropic, Notion)
//   - Retry logic with exponential backoff and jitter
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.OpenAIAPIConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callExternalService()
//	})
//
//	retryConfig := retry.AIAPIConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience
