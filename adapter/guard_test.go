package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideLoadingNeverRedirects(t *testing.T) {
	paths := []string{
		PathLanding, PathHome, PathLogin, PathSignUp,
		PathResetPassword, PathResetPasswordConfirm, "/devices/42",
	}
	for _, path := range paths {
		for _, authenticated := range []bool{true, false} {
			d := Decide(true, authenticated, path)
			assert.True(t, d.Stay(), "loading must never redirect (path=%s auth=%v)", path, authenticated)
		}
	}
}

func TestDecideResetConfirmCarveOut(t *testing.T) {
	// The confirmation screen stays put in every auth state.
	assert.True(t, Decide(false, false, PathResetPasswordConfirm).Stay())
	assert.True(t, Decide(false, true, PathResetPasswordConfirm).Stay())
}

func TestDecideUnauthenticated(t *testing.T) {
	tests := []struct {
		path     string
		redirect string
	}{
		{PathLanding, ""},
		{PathLogin, ""},
		{PathSignUp, ""},
		{PathResetPassword, ""},
		{PathHome, PathLanding},
		{"/devices/42", PathLanding},
		{"/cameras", PathLanding},
	}
	for _, tc := range tests {
		d := Decide(false, false, tc.path)
		assert.Equal(t, tc.redirect, d.Redirect, "path %s", tc.path)
	}
}

func TestDecideAuthenticated(t *testing.T) {
	tests := []struct {
		path     string
		redirect string
	}{
		{PathLanding, PathHome},
		{PathLogin, PathHome},
		{PathSignUp, PathHome},
		{PathResetPassword, PathHome},
		{PathHome, ""},
		{"/devices/42", ""},
	}
	for _, tc := range tests {
		d := Decide(false, true, tc.path)
		assert.Equal(t, tc.redirect, d.Redirect, "path %s", tc.path)
	}
}
