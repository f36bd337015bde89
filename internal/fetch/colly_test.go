package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

func newTestFetcher(t *testing.T) *CollyFetcher {
	t.Helper()
	f, err := NewCollyFetcher(Config{
		UserAgents: []string{"test-agent/1.0"},
		Timeout:    5 * time.Second,
	}, NewClassifier(NewChallengeDetector(DefaultChallengeKeywords)), nil)
	require.NoError(t, err)
	return f
}

func TestFetchReturnsDocument(t *testing.T) {
	page := `<html><body><div id="gsc_prf_in">Someone</div></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	doc, err := newTestFetcher(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, 200, doc.StatusCode)
	require.Contains(t, string(doc.Body), "gsc_prf_in")
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`<html><body><div id="gsc_a_b"></div></body></html>`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "test-agent/1.0", gotUA)
	require.Contains(t, gotAccept, "text/html")
}

func TestFetchClassifiesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	var fe *scholar.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, scholar.KindNotFound, fe.Kind)
}

func TestFetchClassifiesChallengePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><form id="captcha-form"></form></body></html>`))
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	var fe *scholar.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, scholar.KindCaptcha, fe.Kind)
}

func TestFetchLogsDetailAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f, err := NewCollyFetcher(Config{
		UserAgents: []string{"test-agent/1.0"},
		Timeout:    5 * time.Second,
	}, NewClassifier(NewChallengeDetector(DefaultChallengeKeywords)), zap.New(core))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="gsc_prf_in">Someone</div></body></html>`))
	}))
	defer srv.Close()

	_, err = f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fetched := logs.FilterMessage("page fetched").All()
	require.Len(t, fetched, 1)
	require.Equal(t, srv.URL, fetched[0].ContextMap()["url"])
}

func TestFetchUnreachableHostIsTransient(t *testing.T) {
	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/never")
	require.Error(t, err)
	var fe *scholar.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, scholar.KindTransient, fe.Kind)
}

func TestNewCollyFetcherRequiresUserAgent(t *testing.T) {
	_, err := NewCollyFetcher(Config{}, NewClassifier(NewChallengeDetector(nil)), nil)
	require.Error(t, err)
}

func TestSetSessionAcceptsCookies(t *testing.T) {
	f := newTestFetcher(t)
	err := f.SetSession(scholar.SessionState{
		Cookies: []scholar.Cookie{
			{Name: "GSP", Value: "abc", Domain: ".scholar.google.com"},
			{Name: "", Value: "dropped"},
		},
		CapturedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Len(t, f.sessionCookies(), 1, "nameless cookies are dropped")
}
