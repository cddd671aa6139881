package lode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"
)

// Storage failure kinds. A *StorageError matches its kind with errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	// ErrAuth is missing, invalid or expired credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied is valid credentials without permission (403).
	ErrAccessDenied = errors.New("access denied")
	ErrNetwork      = errors.New("network error")
	ErrCanceled     = errors.New("canceled")
	// ErrUnclassified is the kind of anything not recognized above.
	ErrUnclassified = errors.New("storage error")
)

// StorageError is a classified storage failure. The cause stays in the
// chain for errors.As.
type StorageError struct {
	Kind error
	// Op is init, read or write.
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	target := e.Op
	if e.Path != "" {
		target += " " + e.Path
	}
	return fmt.Sprintf("%s: %v: %v", target, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the error's kind.
func (e *StorageError) Is(target error) bool { return errors.Is(e.Kind, target) }

// NewStorageError returns a StorageError of the given kind.
func NewStorageError(kind error, op, path string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Path: path, Err: err}
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewStorageError(classifyError(err), op, path, err)
}

// WrapWriteError classifies a write failure; nil stays nil.
func WrapWriteError(err error, path string) error { return wrap("write", path, err) }

// WrapReadError classifies a read failure; nil stays nil.
func WrapReadError(err error, path string) error { return wrap("read", path, err) }

// WrapInitError classifies a dataset construction failure; nil stays nil.
func WrapInitError(err error, dataset string) error { return wrap("init", dataset, err) }

// s3Codes maps S3 API error codes to kinds.
var s3Codes = map[string]error{
	"NoSuchKey":             ErrNotFound,
	"NoSuchBucket":          ErrNotFound,
	"NotFound":              ErrNotFound,
	"AccessDenied":          ErrAccessDenied,
	"AllAccessDisabled":     ErrAccessDenied,
	"InvalidAccessKeyId":    ErrAuth,
	"SignatureDoesNotMatch": ErrAuth,
	"ExpiredToken":          ErrAuth,
	"SlowDown":              ErrThrottled,
	"RequestTimeout":        ErrTimeout,
}

// statusKinds maps HTTP statuses from object stores to kinds.
var statusKinds = map[int]error{
	http.StatusUnauthorized:       ErrAuth,
	http.StatusForbidden:          ErrAccessDenied,
	http.StatusNotFound:           ErrNotFound,
	http.StatusRequestTimeout:     ErrTimeout,
	http.StatusTooManyRequests:    ErrThrottled,
	http.StatusServiceUnavailable: ErrThrottled,
}

// messageRules classify errors that carry no usable type, in order.
var messageRules = []struct {
	kind     error
	patterns []string
}{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "status 403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "nosuchkey", "status 404"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, []string{"timed out", "timeout", "deadline exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "toomanyrequests", "status 429"}},
	{ErrAuth, []string{"nocredentialproviders", "invalidaccesskeyid", "signaturedoesnotmatch", "expiredtoken", "unauthorized", "status 401"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network is unreachable", "no such host", "dial tcp"}},
}

// classifyError returns the kind of err: typed causes first, then the
// message rules, else ErrUnclassified.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if kind := classifyTyped(err); kind != nil {
		return kind
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.kind
			}
		}
	}
	return ErrUnclassified
}

func classifyTyped(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, syscall.ENOSPC):
		return ErrDiskFull
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := s3Codes[apiErr.ErrorCode()]; ok {
			return kind
		}
	}
	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		if kind, ok := statusKinds[status.HTTPStatusCode()]; ok {
			return kind
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetwork
	}
	return nil
}
