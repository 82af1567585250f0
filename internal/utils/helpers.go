package utils

import (
	"fmt"
	"net/url"
	"regexp"

	"go.uber.org/zap"

	"devrelay/internal/logger"
)

func ValidateNonEmptyString(value, fieldName string) error {
	if value == "" {
		logger.Log.Error(fmt.Sprintf("%s is empty", fieldName))
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

func ValidateRegexString(value, fieldName, pattern string) error {
	if !regexp.MustCompile(pattern).MatchString(value) {
		logger.Log.Error(fmt.Sprintf("%s contains invalid characters", fieldName), zap.String(fieldName, value))
		return fmt.Errorf("%s contains invalid characters: %s", fieldName, value)
	}
	return nil
}

func ValidatePositiveInt(value int, fieldName string) error {
	if value <= 0 {
		logger.Log.Error(fmt.Sprintf("invalid %s", fieldName), zap.Int(fieldName, value))
		return fmt.Errorf("invalid %s: %d, must be positive", fieldName, value)
	}
	return nil
}

func ValidatePort(port int, fieldName string) error {
	if port < 1 || port > 65535 {
		logger.Log.Error(fmt.Sprintf("invalid %s", fieldName), zap.Int(fieldName, port))
		return fmt.Errorf("invalid %s: %d, must be between 1 and 65535", fieldName, port)
	}
	return nil
}

// ValidateWebsocketURL checks that value parses as a ws:// or wss:// URL.
func ValidateWebsocketURL(value, fieldName string) error {
	u, err := url.Parse(value)
	if err != nil {
		logger.Log.Error(fmt.Sprintf("invalid %s", fieldName), zap.String(fieldName, value), zap.Error(err))
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		logger.Log.Error(fmt.Sprintf("invalid %s scheme", fieldName), zap.String(fieldName, value))
		return fmt.Errorf("invalid %s: scheme must be ws or wss, got %q", fieldName, u.Scheme)
	}
	if u.Host == "" {
		logger.Log.Error(fmt.Sprintf("invalid %s host", fieldName), zap.String(fieldName, value))
		return fmt.Errorf("invalid %s: missing host", fieldName)
	}
	return nil
}

// ValidateHTTPURL checks that value parses as an http:// or https:// URL.
func ValidateHTTPURL(value, fieldName string) error {
	u, err := url.Parse(value)
	if err != nil {
		logger.Log.Error(fmt.Sprintf("invalid %s", fieldName), zap.String(fieldName, value), zap.Error(err))
		return fmt.Errorf("invalid %s: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		logger.Log.Error(fmt.Sprintf("invalid %s scheme", fieldName), zap.String(fieldName, value))
		return fmt.Errorf("invalid %s: scheme must be http or https, got %q", fieldName, u.Scheme)
	}
	return nil
}
