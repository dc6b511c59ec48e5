package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
)

// consentTimeout bounds how long the local server waits for the browser
// callback.
const consentTimeout = 5 * time.Minute

// defaultCallbackAddr is the redirect target registered for desktop OAuth
// clients. Another free port is used when it is taken.
const defaultCallbackAddr = "127.0.0.1:8080"

// callbackServer receives the browser redirect that carries the
// authorization code.
type callbackServer struct {
	RedirectURL string

	server *http.Server
	codes  chan string
	errs   chan error
}

func listenCallback(addr string) (*callbackServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	cs := &callbackServer{
		RedirectURL: "http://" + listener.Addr().String(),
		codes:       make(chan string, 1),
		errs:        make(chan error, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", cs.handle)
	cs.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	go func() {
		if err := cs.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cs.fail(fmt.Errorf("server error: %w", err))
		}
	}()
	return cs, nil
}

func (cs *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	switch {
	case query.Get("code") != "":
		fmt.Fprint(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
		select {
		case cs.codes <- query.Get("code"):
		default:
		}
	case query.Get("error") != "":
		fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", html.EscapeString(query.Get("error")))
		cs.fail(fmt.Errorf("authorization error: %s", query.Get("error")))
	default:
		fmt.Fprint(w, "<html><body><h1>No authorization code received</h1></body></html>")
		cs.fail(errors.New("no authorization code received"))
	}
}

// fail records the first error; later ones are dropped.
func (cs *callbackServer) fail(err error) {
	select {
	case cs.errs <- err:
	default:
	}
}

// wait blocks until a code or an error arrives, ctx ends or timeout passes.
func (cs *callbackServer) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-cs.codes:
		return code, nil
	case err := <-cs.errs:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", fmt.Errorf("authorization timeout: no response received within %s", timeout)
	}
}

// Close stops the listener, giving the browser a moment to receive the
// final page.
func (cs *callbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return cs.server.Shutdown(ctx)
}

// LocalServerConsent prints the consent URL to out (stdout when nil) and
// waits for the browser to be redirected to a local callback server. The
// server is shut down before the function returns.
func LocalServerConsent(out io.Writer) ConsentFunc {
	return localServerConsent(out, defaultCallbackAddr, consentTimeout)
}

func localServerConsent(out io.Writer, addr string, timeout time.Duration) ConsentFunc {
	if out == nil {
		out = os.Stdout
	}
	return func(ctx context.Context, cfg *oauth2.Config) (string, error) {
		cs, err := listenCallback(addr)
		if err != nil {
			return "", err
		}
		defer cs.Close()
		cfg.RedirectURL = cs.RedirectURL

		authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

		fmt.Fprintf(out, "Starting local server on %s\n", cs.RedirectURL)
		if cs.RedirectURL != "http://"+addr {
			fmt.Fprintf(out, "Note: %s was unavailable. Make sure to add %s to your authorized redirect URIs in Google Cloud Console.\n", addr, cs.RedirectURL)
		}
		fmt.Fprintln(out, "\nPlease visit the following URL to authorize the application:")
		fmt.Fprintln(out, authURL)
		fmt.Fprintln(out, "\nWaiting for authorization...")

		return cs.wait(ctx, timeout)
	}
}

// ReaderConsent prints the consent URL to out and reads the authorization
// code pasted by the user from r.
func ReaderConsent(r io.Reader, out io.Writer) ConsentFunc {
	return func(ctx context.Context, cfg *oauth2.Config) (string, error) {
		authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

		fmt.Fprintln(out, "Please visit the following URL to authorize the application:")
		fmt.Fprintln(out, authURL)
		fmt.Fprint(out, "Enter the authorization code: ")

		var code string
		if _, err := fmt.Fscanln(r, &code); err != nil {
			return "", fmt.Errorf("failed to read authorization code: %w", err)
		}
		return code, nil
	}
}
