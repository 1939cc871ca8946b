package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"chatrelay/internal/gemini"
)

// Outcome класс результата одной попытки.
type Outcome string

const (
	OutcomeSuccess    Outcome = "success"
	OutcomeOverloaded Outcome = "overloaded"
	OutcomeFatal      Outcome = "fatal"
	OutcomeNetwork    Outcome = "network"
	OutcomeAborted    Outcome = "aborted"
)

// Classify относит результат вызова upstream к одному из классов.
// ctx нужен, чтобы отличить отмену вызывающим от таймаута транспорта.
func Classify(ctx context.Context, err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	var se *gemini.StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.StatusCode)
	}
	if errors.Is(err, gemini.ErrDecode) {
		return OutcomeAborted
	}
	if isTransportErr(ctx, err) {
		return OutcomeNetwork
	}
	return OutcomeAborted
}

func classifyStatus(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusTooManyRequests, status >= 500:
		return OutcomeOverloaded
	case status >= 400:
		return OutcomeFatal
	default:
		return OutcomeAborted
	}
}

// isTransportErr true только для сбоев соединения: dial, DNS, reset, EOF,
// таймаут транспорта. *url.Error сам реализует net.Error, поэтому
// ошибки конфигурации (неверная схема, битый URL) сюда не попадают.
func isTransportErr(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// таймаут клиента, контекст вызывающего жив
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}

// reason короткое описание для логов, как в консольном выводе попыток.
func reason(outcome Outcome, err error) string {
	var se *gemini.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusServiceUnavailable:
			return "overloaded"
		case se.StatusCode == http.StatusTooManyRequests:
			return "rate limit"
		case se.StatusCode >= 500:
			return "upstream 5xx"
		default:
			return "client error"
		}
	}
	switch outcome {
	case OutcomeNetwork:
		return reasonForNetErr(err)
	case OutcomeAborted:
		if errors.Is(err, gemini.ErrDecode) {
			return "malformed response"
		}
		if errors.Is(err, context.Canceled) {
			return "cancelled"
		}
		return "unexpected error"
	default:
		return string(outcome)
	}
}

func reasonForNetErr(err error) string {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "eof"
	}
	if errors.Is(err, syscall.ECONNRESET) || strings.Contains(strings.ToLower(err.Error()), "connection reset") {
		return "connection reset"
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return "connection refused"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "network error"
}
