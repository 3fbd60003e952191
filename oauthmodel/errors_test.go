package oauthmodel_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jrsteele09/go-social-login/oauthmodel"
	"github.com/stretchr/testify/require"
)

// TestKindCodeRoundTrip tests that every structured error survives being named on the wire
func TestKindCodeRoundTrip(t *testing.T) {
	tests := []struct {
		err  error
		kind error
	}{
		{&oauthmodel.ConfigError{ProviderID: "p", Field: "appId"}, oauthmodel.ErrConfig},
		{&oauthmodel.HTTPError{Kind: oauthmodel.ErrTokenExchange, URL: "u", StatusCode: 400}, oauthmodel.ErrTokenExchange},
		{&oauthmodel.HTTPError{Kind: oauthmodel.ErrResourceFetch, URL: "u", StatusCode: 500}, oauthmodel.ErrResourceFetch},
		{&oauthmodel.AuthorizationDeniedError{Code: "access_denied"}, oauthmodel.ErrAuthorizationDenied},
		{fmt.Errorf("wrapped: %w", oauthmodel.ErrStateMismatch), oauthmodel.ErrStateMismatch},
		{oauthmodel.ErrNoCodeOrToken, oauthmodel.ErrNoCodeOrToken},
	}
	for _, tt := range tests {
		code := oauthmodel.KindCode(tt.err)
		require.NotEmpty(t, code, tt.err.Error())
		require.Equal(t, tt.kind, oauthmodel.KindFromCode(code))
	}

	require.Empty(t, oauthmodel.KindCode(errors.New("plain")))
	require.Nil(t, oauthmodel.KindFromCode("no_such_kind"))
}

// TestPopupMessageErrorUnwrap tests that a relayed failure matches its kind
func TestPopupMessageErrorUnwrap(t *testing.T) {
	err := error(&oauthmodel.PopupMessageError{Message: "bad gateway", Kind: oauthmodel.ErrTokenExchange})
	require.ErrorIs(t, err, oauthmodel.ErrTokenExchange)
	require.False(t, oauthmodel.IsCancellation(err))

	err = &oauthmodel.PopupMessageError{Message: "no reason", Kind: oauthmodel.ErrAuthorizationDenied, Code: "server_error"}
	require.ErrorIs(t, err, oauthmodel.ErrAuthorizationDenied)
	require.False(t, oauthmodel.IsCancellation(err))

	require.NoError(t, errors.Unwrap(&oauthmodel.PopupMessageError{Message: "x"}))
}

// TestIsCancellation tests which failures count as user driven
func TestIsCancellation(t *testing.T) {
	require.True(t, oauthmodel.IsCancellation(oauthmodel.ErrPopupClosed))
	require.True(t, oauthmodel.IsCancellation(context.Canceled))
	require.True(t, oauthmodel.IsCancellation(&oauthmodel.AuthorizationDeniedError{Code: oauthmodel.AccessDenied}))
	require.False(t, oauthmodel.IsCancellation(oauthmodel.ErrTimeout))
}
