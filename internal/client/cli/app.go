package cli

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/deaddrop/internal/client/client"
	"github.com/dmitrijs2005/deaddrop/internal/client/config"
	"github.com/dmitrijs2005/deaddrop/internal/common"
)

// getCodename is a test seam for GetCodename.
var getCodename = GetCodename

type App struct {
	config   *config.Config
	api      client.Client
	reader   *bufio.Reader
	out      io.Writer
	loggedIn bool
}

func NewApp(c *config.Config, api client.Client, in io.Reader, out io.Writer) *App {
	return &App{config: c, api: api, reader: bufio.NewReader(in), out: out}
}

func (a *App) Close() error {
	return a.api.Close()
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}

func (a *App) getStatus() string {
	if a.loggedIn {
		return "(logged in)"
	}
	return ""
}

func (a *App) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// report prints err for the source and returns it. Unauthorized errors
// mean the server cleared the session.
func (a *App) report(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		a.loggedIn = false
	}
	fmt.Fprintln(a.out, "Error:", err)
	return err
}

// Generate asks for a fresh codename, shows it once and creates the source.
func (a *App) Generate(ctx context.Context) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	cn, err := a.api.Generate(ctx)
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, "Your codename is:")
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "    "+cn)
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Write it down and keep it secret. It is the only way to check for replies.")

	if err := a.api.Create(ctx); err != nil {
		return a.report(err)
	}
	a.loggedIn = true
	return nil
}

func (a *App) Login(ctx context.Context) error {
	cn, err := getCodename(a.out)
	if err != nil {
		return a.report(err)
	}
	defer common.WipeByteArray(cn)

	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	if err := a.api.Login(ctx, string(cn)); err != nil {
		return a.report(err)
	}
	a.loggedIn = true
	fmt.Fprintln(a.out, "Logged in.")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	res, err := a.api.Lookup(ctx)
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintf(a.out, "Your submissions are assigned to: %s\n", res.JournalistDesignation)
	fmt.Fprintf(a.out, "Submissions so far: %d\n", res.Submissions)
	if res.HasReplies {
		fmt.Fprintln(a.out, "You have replies. Use 'delete' once you have read them.")
	} else {
		fmt.Fprintln(a.out, "No replies yet.")
	}
	if !res.HasKey {
		fmt.Fprintln(a.out, "Your reply key is still being prepared.")
	}
	return nil
}

// Submit prompts for a message and an optional file path.
func (a *App) Submit(ctx context.Context) error {
	msg, err := GetMultiline(a.reader, "Enter your message", a.out)
	if err != nil {
		return a.report(err)
	}
	path, err := GetSimpleText(a.reader, "File to attach (empty for none)", a.out)
	if err != nil && !errors.Is(err, io.EOF) {
		return a.report(err)
	}
	return a.SubmitWith(ctx, msg, path)
}

// SubmitWith sends msg and the file at path, if any.
func (a *App) SubmitWith(ctx context.Context, msg, path string) error {
	var upload *client.Upload
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return a.report(err)
		}
		defer f.Close()
		upload = &client.Upload{Name: filepath.Base(path), Body: f}
	}

	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	res, err := a.api.Submit(ctx, msg, upload)
	if err != nil {
		return a.report(err)
	}

	if res.IsFirst {
		fmt.Fprintln(a.out, "Thanks! We received your submission. Check back later for replies.")
	} else {
		fmt.Fprintln(a.out, "Thanks! We received your submission.")
	}
	return nil
}

func (a *App) DeleteReplies(ctx context.Context) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	n, err := a.api.DeleteAll(ctx)
	if err != nil {
		return a.report(err)
	}
	if n == 0 {
		fmt.Fprintln(a.out, "There were no replies to delete.")
		return nil
	}
	fmt.Fprintf(a.out, "Deleted %d replies.\n", n)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	msg, err := a.api.Logout(ctx)
	a.loggedIn = false
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Metadata(ctx context.Context) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	md, err := a.api.Metadata(ctx)
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintf(a.out, "Version:    %s\n", md.Version)
	fmt.Fprintf(a.out, "Commit:     %s\n", md.Commit)
	fmt.Fprintf(a.out, "Build date: %s\n", md.BuildDate)
	fmt.Fprintf(a.out, "Go:         %s\n", md.GoVersion)
	return nil
}

func (a *App) JournalistKey(ctx context.Context) error {
	ctx, cancel := a.callCtx(ctx)
	defer cancel()

	key, err := a.api.JournalistKey(ctx)
	if err != nil {
		return a.report(err)
	}
	if len(key) == 0 {
		fmt.Fprintln(a.out, "No journalist key is configured.")
		return nil
	}
	fmt.Fprintln(a.out, hex.EncodeToString(key))
	return nil
}

// Run starts the interactive session and blocks until the source exits.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "deaddrop source client (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}
