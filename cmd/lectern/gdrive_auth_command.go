package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"

	"lectern/internal/config"
)

// newGDriveAuthCommand runs the OAuth consent flow once and prints the
// refresh token the gdrive storage backend needs. Config is read from the
// environment only, since storage validation would reject a gdrive setup
// that has no token yet.
func newGDriveAuthCommand(_ *commandContext) *cobra.Command {
	var (
		clientID     string
		clientSecret string
		wait         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gdrive-auth",
		Short: "Obtain a Google Drive refresh token for the gdrive storage backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			if clientID == "" {
				clientID = config.Env("GDRIVE_CLIENT_ID", "")
			}
			if clientSecret == "" {
				clientSecret = config.Env("GDRIVE_CLIENT_SECRET", "")
			}
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("client id and secret are required (--client-id/--client-secret or GDRIVE_CLIENT_ID/GDRIVE_CLIENT_SECRET)")
			}
			return runGDriveAuth(cmd, clientID, clientSecret, wait)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client secret")
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Minute, "How long to wait for the browser callback")
	return cmd
}

func runGDriveAuth(cmd *cobra.Command, clientID, clientSecret string, wait time.Duration) error {
	out := cmd.OutOrStdout()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen for callback: %w", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
		RedirectURL:  redirectURL,
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code, err := callbackCode(r, state)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			select {
			case errCh <- err:
			default:
			}
			return
		}
		fmt.Fprintln(w, "Done. You can close this window and return to the terminal.")
		select {
		case codeCh <- code:
		default:
		}
	})

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	defer srv.Close()

	// Offline access with forced consent so Google returns a refresh token.
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))

	fmt.Fprintf(out, "Open this URL in your browser:\n\n%s\n\nWaiting for authorization on %s\n", authURL, redirectURL)

	ctx, cancel := context.WithTimeout(cmd.Context(), wait)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for authorization")
	}

	tok, err := conf.Exchange(cmd.Context(), code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if strings.TrimSpace(tok.RefreshToken) == "" {
		return fmt.Errorf("no refresh token returned; revoke the app at https://myaccount.google.com/permissions and retry")
	}

	fmt.Fprintf(out, "\nGDRIVE_REFRESH_TOKEN=%s\n", tok.RefreshToken)
	return nil
}

func callbackCode(r *http.Request, state string) (string, error) {
	q := r.URL.Query()
	if q.Get("state") != state {
		return "", fmt.Errorf("invalid state")
	}
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("auth error: %s", e)
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("missing code")
	}
	return code, nil
}

func randomState() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
