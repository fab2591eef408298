package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/tripdesk/internal/booking"
	"github.com/danpilch/tripdesk/internal/catalog"
	"github.com/danpilch/tripdesk/internal/config"
)

type fakeSession struct {
	openErr  error
	results  map[string]StepResult
	click    ClickResult
	clickErr error
	location string

	scripts []string
	closed  int
}

func (f *fakeSession) Open(context.Context, string) error { return f.openErr }

func (f *fakeSession) Eval(_ context.Context, script string, out any) error {
	f.scripts = append(f.scripts, script)
	for marker, res := range f.results {
		if strings.Contains(script, "/* "+marker+" */") {
			b, _ := json.Marshal(res)
			return json.Unmarshal(b, out)
		}
	}
	return nil
}

func (f *fakeSession) Click(_ context.Context, script string) (ClickResult, error) {
	f.scripts = append(f.scripts, script)
	return f.click, f.clickErr
}

func (f *fakeSession) Location(context.Context) (string, error) { return f.location, nil }

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

type fakeBrowser struct {
	session *fakeSession
	err     error
}

func (b *fakeBrowser) NewSession(context.Context) (Session, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.session, nil
}

func testAutomator(b Browser) *Automator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := config.Default().Checkout
	cfg.ClickDelay = 0
	cfg.SettleDelay = 0
	cfg.BookDelay = 0
	return NewAutomator(b, cfg, logger)
}

func snapshot() booking.Snapshot {
	return booking.Snapshot{
		Kind:       catalog.KindTrain,
		Identifier: "12345",
		Name:       "Express",
		Class:      catalog.ClassSecondAC,
		ClassLabel: "2nd AC",
	}
}

const listing = "https://railways.example.com/list"

func TestExecuteSuccessInNewTab(t *testing.T) {
	sess := &fakeSession{
		results: map[string]StepResult{
			"locate:attribute": {Matched: true, Via: `[data-train="12345"]`},
			"select:class":     {Matched: true, Via: "input"},
		},
		click:    ClickResult{StepResult: StepResult{Matched: true, Via: "book now"}, NewTab: true, URL: "https://railways.example.com/checkout/abc"},
		location: listing,
	}

	res := testAutomator(&fakeBrowser{session: sess}).Execute(context.Background(), listing, snapshot())

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "https://railways.example.com/checkout/abc", res.CheckoutURL)
	assert.True(t, res.Reached())
	assert.Equal(t, 1, sess.closed)
	require.Len(t, res.Steps, 5)
	assert.Equal(t, "book now (new tab)", res.Steps[4].Detail)
	for _, s := range sess.scripts {
		assert.NotContains(t, s, "/* locate:text */", "text scan must not run after an attribute match")
	}
}

func TestExecuteFallsBackToTextScan(t *testing.T) {
	sess := &fakeSession{
		results: map[string]StepResult{
			"locate:text":  {Matched: true, Via: "text"},
			"select:class": {Matched: true, Via: "alias"},
		},
		click:    ClickResult{StepResult: StepResult{Matched: true, Via: "continue"}},
		location: "https://railways.example.com/review",
	}

	res := testAutomator(&fakeBrowser{session: sess}).Execute(context.Background(), listing, snapshot())

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "https://railways.example.com/review", res.CheckoutURL)
	assert.Contains(t, sess.scripts[1], `"12345"`)
}

func TestExecuteNotFound(t *testing.T) {
	sess := &fakeSession{location: listing}

	res := testAutomator(&fakeBrowser{session: sess}).Execute(context.Background(), listing, snapshot())

	assert.Equal(t, StatusNotFound, res.Status)
	assert.Equal(t, listing, res.CheckoutURL)
	assert.Contains(t, res.Message, "12345")
	assert.False(t, res.Reached())
	assert.Equal(t, 1, sess.closed)
}

func TestExecuteClassSelectionIsSoft(t *testing.T) {
	sess := &fakeSession{
		results: map[string]StepResult{
			"locate:attribute": {Matched: true},
		},
		click: ClickResult{StepResult: StepResult{Matched: true, Via: "book"}, URL: "https://railways.example.com/checkout"},
	}

	res := testAutomator(&fakeBrowser{session: sess}).Execute(context.Background(), listing, snapshot())

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, "https://railways.example.com/checkout", res.CheckoutURL)
	assert.Contains(t, res.Message, "coach class 2A")
	assert.True(t, res.Reached())
}

func TestExecuteMissingBookButton(t *testing.T) {
	sess := &fakeSession{
		results: map[string]StepResult{
			"locate:attribute": {Matched: true},
			"select:class":     {Matched: true},
		},
		clickErr: errors.New("script failed"),
		location: "https://railways.example.com/list#12345",
	}

	res := testAutomator(&fakeBrowser{session: sess}).Execute(context.Background(), listing, snapshot())

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, "https://railways.example.com/list#12345", res.CheckoutURL)
	assert.Contains(t, res.Message, "Book button")
	assert.Equal(t, 1, sess.closed)
}

func TestExecuteOpenFailureClosesSession(t *testing.T) {
	sess := &fakeSession{openErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	res := testAutomator(&fakeBrowser{session: sess}).Execute(context.Background(), listing, snapshot())

	assert.Equal(t, StatusError, res.Status)
	assert.Empty(t, res.CheckoutURL)
	assert.Contains(t, res.Message, listing)
	assert.Equal(t, 1, sess.closed)
}

func TestExecuteLaunchFailure(t *testing.T) {
	res := testAutomator(&fakeBrowser{err: errors.New("chrome not found")}).Execute(context.Background(), listing, snapshot())

	assert.Equal(t, StatusError, res.Status)
	assert.NotEmpty(t, res.Message)
}

func TestExecuteCancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &fakeSession{
		results:  map[string]StepResult{"locate:attribute": {Matched: true}},
		location: listing,
	}
	a := testAutomator(&fakeBrowser{session: sess})
	a.cfg.ClickDelay = config.Duration(1e9)
	cancel()

	res := a.Execute(ctx, listing, snapshot())

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, listing, res.CheckoutURL)
	assert.Equal(t, 1, sess.closed)
}

func TestScriptsEmbedArgumentsAsJSON(t *testing.T) {
	assert.Contains(t, locateByAttributeScript(`12"45`), `CSS.escape("12\"45")`)
	assert.Contains(t, locateByTextScript("12345", catalog.KindBus), `[class*=\"bus\"]`)
	assert.Contains(t, selectClassScript(catalog.ClassThirdAC), `"3rd AC"`)
	assert.Contains(t, bookScript(), `["book now","book","continue","proceed"]`)
}

func TestTextLocatorClicksSmallestMatch(t *testing.T) {
	script := locateByTextScript("12345", catalog.KindTrain)
	assert.Contains(t, script, `text.includes(id) && text.length < bestLen`)
	assert.Contains(t, script, `best.click()`)
	assert.NotContains(t, script, `.find(`)
}
