package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	keygen "github.com/cmr-git/github-keygen"
	"github.com/cmr-git/github-keygen/api"
	"github.com/cmr-git/github-keygen/keys"
)

// Process exit statuses.
const (
	exitOK            = 0
	exitUsage         = 1
	exitDeviceCode    = 2
	exitAuthorization = 3
	exitKeySubmission = 4
	exitMalformed     = 5
	exitInternal      = 6
)

const usageMessage = "Missing public key argument/invalid arguments"

type options struct {
	host       *keygen.Host
	httpClient *http.Client
	browse     func(string) error
}

// outcome is filled in by a successful run of the root command.
type outcome struct {
	publicKey string
	result    keys.Result
}

type usageError struct {
	err error
}

func (e usageError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return usageMessage
}

func newRootCmd(opts options, stdout, stderr io.Writer, out *outcome) *cobra.Command {
	var (
		web     bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "github-keygen <public-key>",
		Short: "Add an SSH public key to your GitHub account",
		Long: `github-keygen adds an SSH public key to your GitHub account.

You authorize the request in your browser with a one-time code, so the
tool never sees your password. The key is labelled "` + keygen.DefaultTitle + `".`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError{}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewWithOptions(stderr, log.Options{
				Level:  log.WarnLevel,
				Prefix: "github-keygen",
			})
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}

			flow := &keygen.Flow{
				Host:       opts.host,
				HTTPClient: opts.httpClient,
				Stdout:     stdout,
				Logger:     logger,
			}
			if web {
				flow.BrowseURL = opts.browse
			}

			result, err := flow.Enroll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			*out = outcome{publicKey: args[0], result: result}
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	cmd.Flags().BoolVar(&web, "web", false, "Also open the verification page in the default web browser")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to standard error")

	return cmd
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts options) int {
	var out outcome
	cmd := newRootCmd(opts, stdout, stderr, &out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		return reportError(stdout, cmd, err)
	}
	// -h/--help prints help and skips RunE; no key was submitted, whatever the arguments.
	if out.result == 0 {
		fmt.Fprintln(stdout, usageMessage)
		return exitUsage
	}
	reportSuccess(stdout, out)
	return exitOK
}

func reportSuccess(w io.Writer, out outcome) {
	switch out.result {
	case keys.Created:
		color.New(color.FgGreen).Fprintln(w, "SSH key successfully added to github")
		if fp, err := keys.Fingerprint(out.publicKey); err == nil {
			fmt.Fprintf(w, "Key fingerprint: %s\n", fp)
		}
	case keys.AlreadyExists:
		fmt.Fprintln(w, "SSH key already exists on user account")
	}
}

func reportError(w io.Writer, cmd *cobra.Command, err error) int {
	var uErr usageError
	if errors.As(err, &uErr) {
		fmt.Fprintln(w, usageMessage)
		if uErr.err != nil {
			fmt.Fprintln(w, uErr.err)
		}
		fmt.Fprint(w, cmd.UsageString())
		return exitUsage
	}

	if errors.Is(err, api.ErrMalformedResponse) {
		fmt.Fprintln(w, "Unexpected response from GitHub")
		fmt.Fprintln(w, err)
		return exitMalformed
	}

	stage, ok := keygen.FailedStage(err)
	if !ok {
		fmt.Fprintln(w, "Unexpected error")
		fmt.Fprintln(w, err)
		return exitInternal
	}

	switch stage {
	case keygen.StageDeviceCode:
		fmt.Fprintln(w, "Unable to make authentication request, stopping")
		printResponse(w, err)
		return exitDeviceCode
	case keygen.StageAuthorization:
		fmt.Fprintln(w, "Unable to get device code")
		printResponse(w, err)
		return exitAuthorization
	default:
		color.New(color.FgRed).Fprintln(w, "SSH key could not be added")
		var submitErr *keys.SubmitError
		if errors.As(err, &submitErr) {
			fmt.Fprintln(w, string(submitErr.RequestBody))
		} else {
			fmt.Fprintln(w, err)
		}
		return exitKeySubmission
	}
}

// printResponse writes the status and body of the server reply behind err, or err itself when the server
// was never reached.
func printResponse(w io.Writer, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintf(w, "HTTP %d\n", apiErr.ResponseCode)
	if body := strings.TrimSpace(apiErr.Body); body != "" {
		fmt.Fprintln(w, body)
	}
}
