package checkout

import "context"

// StepResult is what the page scripts report back.
type StepResult struct {
	Matched bool   `json:"matched"`
	Via     string `json:"via"`
	Text    string `json:"text"`
}

// ClickResult describes a click that may have navigated or opened a new tab.
type ClickResult struct {
	StepResult
	NewTab bool   `json:"new_tab"`
	Href   string `json:"href"`
	URL    string `json:"-"`
}

// Browser starts isolated browser sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one browser tab. Close must release every resource the session
// holds and is safe to call more than once.
type Session interface {
	// Open navigates to url and waits for the page to settle.
	Open(ctx context.Context, url string) error
	// Eval runs a script and decodes its JSON result into out.
	Eval(ctx context.Context, script string, out any) error
	// Click runs a clicking script and reports the URL reached afterwards,
	// following a newly opened tab when there is one.
	Click(ctx context.Context, script string) (ClickResult, error)
	Location(ctx context.Context) (string, error)
	Close() error
}
