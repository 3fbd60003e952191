package jwt

import (
	"errors"
	"fmt"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DecodePayload returns the claims of rawToken without verifying its signature.
// The result is informational: nothing in this module makes trust decisions on it.
func DecodePayload(rawToken string) (map[string]any, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("[jwt DecodePayload] empty token")
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("[jwt DecodePayload] malformed token: %w", err)
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[jwt DecodePayload] error extracting claims")
	}
	return map[string]any(claims), nil
}
