package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"syscall"
)

// ErrorLabel returns a short human-friendly label for a transport failure.
func ErrorLabel(err error) string {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	var unknownAuth x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	var recordErr tls.RecordHeaderError
	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.As(err, &dnsErr):
		return "DNS lookup failed"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "Connection refused"
	case errors.Is(err, syscall.ECONNRESET):
		return "Connection reset"
	case errors.As(err, &unknownAuth), errors.As(err, &hostnameErr), errors.As(err, &certInvalid), errors.As(err, &recordErr):
		return "TLS error"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Timeout"
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "tls:"):
		return "TLS error"
	case strings.Contains(msg, "EOF"):
		return "Connection closed"
	case strings.Contains(msg, "unsupported protocol scheme"):
		return "Request URL error"
	}
	return "Request failed"
}
