package adapter

// Route paths the guard and the session adapter navigate between.
const (
	// PathLanding is the public entry screen.
	PathLanding = "/"
	// PathHome is the authenticated home screen.
	PathHome = "/home"
	// PathLogin, PathSignUp, and PathResetPassword are the public auth
	// screens; authenticated users are bounced off them.
	PathLogin         = "/auth/login"
	PathSignUp        = "/auth/signup"
	PathResetPassword = "/auth/reset-password"
	// PathResetPasswordConfirm is reachable in every auth state: a user
	// arriving from a recovery deep link may be technically authenticated
	// (recovery session) or not, and must stay on this screen either way.
	PathResetPasswordConfirm = "/auth/reset-password-confirm"
)

var publicOnlyPaths = map[string]bool{
	PathLanding:       true,
	PathLogin:         true,
	PathSignUp:        true,
	PathResetPassword: true,
}

// Decision is the route guard's verdict. An empty Redirect means stay.
type Decision struct {
	Redirect string
}

// Stay reports whether the current route should be kept.
func (d Decision) Stay() bool { return d.Redirect == "" }

// Decide evaluates the route guard for one navigation. The rules, in order:
//
//  1. While the initial session lookup is loading, never redirect; a
//     premature verdict would bounce a user who is about to be authenticated.
//  2. The password-reset confirmation screen is exempt from all rules.
//  3. Without a session, protected routes redirect to the landing screen.
//  4. With a session, public-only routes redirect to home.
func Decide(loading, authenticated bool, path string) Decision {
	if loading {
		return Decision{}
	}
	if path == PathResetPasswordConfirm {
		return Decision{}
	}
	if !authenticated && !publicOnlyPaths[path] {
		return Decision{Redirect: PathLanding}
	}
	if authenticated && publicOnlyPaths[path] {
		return Decision{Redirect: PathHome}
	}
	return Decision{}
}
