package screen

// Mode is the form mode of the screen.
type Mode int

const (
	// LoggingIn signs in an existing account. It is the initial mode.
	LoggingIn Mode = iota
	// Registering creates a new account.
	Registering
)

func (m Mode) String() string {
	if m == Registering {
		return "registering"
	}
	return "logging_in"
}

// State is the form state of one screen.
type State struct {
	Mode     Mode   `json:"mode"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Error    string `json:"error,omitempty"`
	Busy     bool   `json:"-"`
}

const processingLabel = "Processing..."

// Controls is what the form renders for a state.
type Controls struct {
	Heading           string
	SubmitLabel       string
	SubmitDisabled    bool
	FederatedLabel    string
	FederatedDisabled bool
	TogglePrompt      string
	ToggleLabel       string
}

// ControlsFor derives the form controls from a state.
func ControlsFor(st State) Controls {
	c := Controls{
		Heading:        "Welcome Back",
		SubmitLabel:    "Login",
		FederatedLabel: "Sign in with Google",
		TogglePrompt:   "Don't have an account?",
		ToggleLabel:    "Register",
	}
	if st.Mode == Registering {
		c.Heading = "Create Account"
		c.SubmitLabel = "Register"
		c.TogglePrompt = "Already have an account?"
		c.ToggleLabel = "Login"
	}
	if st.Busy {
		c.SubmitLabel = processingLabel
		c.FederatedLabel = processingLabel
		c.SubmitDisabled = true
		c.FederatedDisabled = true
	}
	return c
}
