package inference

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/loomchat/internal/errs"
)

// classifyUpstreamError maps an error from the streaming client onto the
// Upstream sub-kinds, preferring the HTTP status carried on
// *openai.APIError and falling back to keyword matching over the error
// text for clients that surface plain strings.
func classifyUpstreamError(err error) *errs.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return errs.UpstreamError(errs.Timeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return errs.UpstreamError(errs.RateLimited, err)
		case 401, 403:
			return errs.UpstreamError(errs.AuthFailed, err)
		case 404:
			return errs.UpstreamError(errs.EndpointNotFound, err)
		case 413:
			return errs.UpstreamError(errs.ContextTooLong, err)
		case 402:
			return errs.UpstreamError(errs.InsufficientCredit, err)
		case 503, 502, 504:
			return errs.UpstreamError(errs.Overloaded, err)
		}
		if apiErr.HTTPStatusCode >= 500 {
			return errs.UpstreamError(errs.ServerError, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return errs.UpstreamError(errs.RateLimited, err)
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "503") || strings.Contains(msg, "service unavailable"):
		return errs.UpstreamError(errs.Overloaded, err)
	case strings.Contains(msg, "context_length") || strings.Contains(msg, "maximum context") || strings.Contains(msg, "too long"):
		return errs.UpstreamError(errs.ContextTooLong, err)
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "401"):
		return errs.UpstreamError(errs.AuthFailed, err)
	case strings.Contains(msg, "content filter") || strings.Contains(msg, "content_filter") || strings.Contains(msg, "moderation"):
		return errs.UpstreamError(errs.ContentFiltered, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded"):
		return errs.UpstreamError(errs.Timeout, err)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
		return errs.UpstreamError(errs.EndpointNotFound, err)
	case strings.Contains(msg, "insufficient") || strings.Contains(msg, "quota") || strings.Contains(msg, "billing"):
		return errs.UpstreamError(errs.InsufficientCredit, err)
	default:
		return errs.UpstreamError(errs.ServerError, err)
	}
}

// isEOF reports a clean stream end, matching both a literal io.EOF and
// the string form some transports wrap it in.
func isEOF(err error) bool {
	return err != nil && (errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF"))
}
