package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"gitlab.bluewillows.net/root/ddnsweaver/internal/config"
	"gitlab.bluewillows.net/root/ddnsweaver/internal/reconciler"
	"gitlab.bluewillows.net/root/ddnsweaver/providers/cloudflare"
)

// accountTimeout bounds each account command.
const accountTimeout = time.Minute

// runZones prints the zones visible to a token. The token comes from the first
// argument, then DDNSWEAVER_CLOUDFLARE_TOKEN, then an interactive prompt.
func runZones(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, flags := newFlagSet("zones", stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: ddnsweaver zones [flags] [token]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := "warn"
	if flags.debug {
		level = "debug"
	}
	logger := setupLogger(stderr, level, "text")

	token := strings.TrimSpace(fs.Arg(0))
	if token == "" {
		token = strings.TrimSpace(os.Getenv(config.EnvCloudflareToken))
	}
	if token == "" {
		var err error
		token, err = promptToken(os.Stdin, stderr)
		if err != nil {
			return err
		}
	}

	account, err := cloudflare.NewAccount(token, cloudflare.WithAccountLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, accountTimeout)
	defer cancel()

	zones, err := account.Zones(ctx)
	if err != nil {
		return err
	}

	return printZones(stdout, zones)
}

func printZones(w io.Writer, zones []cloudflare.Zone) error {
	if len(zones) == 0 {
		_, err := fmt.Fprintln(w, "no zones visible to this token")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ZONE ID\tNAME\tSTATUS\tPLAN")
	for _, z := range zones {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", z.ID, z.Name, z.Status, z.Plan)
	}
	return tw.Flush()
}

// promptToken reads a token from the terminal without echoing it. Piped input
// is read as a single line.
func promptToken(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading token: %w", err)
		}
		if token := strings.TrimSpace(line); token != "" {
			return token, nil
		}
		return "", errors.New("no API token given")
	}

	fmt.Fprint(out, "Cloudflare API token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", errors.New("no API token given")
	}
	return token, nil
}

// runVerify checks every distinct configured token with Cloudflare, then pings
// each provider and looks up zones configured by name.
func runVerify(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, flags := newFlagSet("verify", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(flags, stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, accountTimeout)
	defer cancel()

	var errs []error
	seen := make(map[string]bool)
	for _, g := range cfg.Groups {
		if g.Cloudflare == nil || seen[g.Cloudflare.Token] {
			continue
		}
		seen[g.Cloudflare.Token] = true

		account, err := cloudflare.NewAccount(g.Cloudflare.Token, cloudflare.WithAccountLogger(logger))
		if err != nil {
			errs = append(errs, fmt.Errorf("domains[%d]: %w", g.Index, err))
			continue
		}

		status, err := account.VerifyToken(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("domains[%d]: %w", g.Index, err))
			fmt.Fprintf(stdout, "domains[%d]: token rejected\n", g.Index)
			continue
		}

		expires := "never"
		if !status.ExpiresOn.IsZero() {
			expires = status.ExpiresOn.Format(time.RFC3339)
		}
		fmt.Fprintf(stdout, "domains[%d]: token %s (expires %s)\n", g.Index, status.Status, expires)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	rec, err := reconciler.New(cfg, reconciler.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("building records: %w", err)
	}
	if err := rec.Verify(ctx); err != nil {
		return fmt.Errorf("checking providers: %w", err)
	}

	logger.Info("all credentials verified", slog.Int("tokens", len(seen)))
	fmt.Fprintln(stdout, "all credentials and zones verified")
	return nil
}
