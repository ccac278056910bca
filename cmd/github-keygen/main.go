// Command github-keygen adds an SSH public key to the GitHub account of whoever authorizes it in their
// browser.
//
//	github-keygen "$(cat ~/.ssh/id_ed25519.pub)"
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/cli/browser"

	keygen "github.com/cmr-git/github-keygen"
)

func main() {
	host, err := keygen.GitHubHost("https://github.com")
	if err != nil {
		panic(err)
	}

	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, options{
		host:       host,
		httpClient: &http.Client{Timeout: time.Minute},
		browse:     browser.OpenURL,
	}))
}
