package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
	"github.com/markjakearzadon/globalfund-gobackend/internal/donation"
	"github.com/markjakearzadon/globalfund-gobackend/internal/ledger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/wallet"
)

const usage = `usage: donor [-config file] <command> [flags]

commands:
  orgs     list organizations
  fund     open the MoonPay on-ramp for your wallet
  donate   send a donation and confirm it with the ledger
  status   show a donation record`

type app struct {
	cfg    *config.DonorConfig
	log    *logrus.Logger
	ledger *ledger.Client
	in     *bufio.Reader
	out    io.Writer
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load(".env")

	cfg, err := config.LoadDonor(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg.Log)
	for _, w := range cfg.Warnings {
		log.Debug(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:    cfg,
		log:    log,
		ledger: ledger.New(cfg.APIURL, cfg.APITimeout, log),
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	args := flag.Args()
	switch args[0] {
	case "orgs":
		err = a.orgs(ctx, args[1:])
	case "fund":
		err = a.fund(ctx, args[1:])
	case "donate":
		err = a.donate(ctx, args[1:])
	case "status":
		err = a.status(ctx, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

func (a *app) orgs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orgs", flag.ExitOnError)
	search := fs.String("search", "", "filter by name or description")
	category := fs.String("category", "", "filter by category")
	_ = fs.Parse(args)

	list, err := a.ledger.ListOrganizations(ctx, ledger.OrganizationQuery{Search: *search, Category: *category})
	if err != nil {
		return err
	}
	for _, org := range list.Results {
		fmt.Fprintf(a.out, "%s  %s %-32s %-12s raised %s / %s (%d donors)\n",
			org.ID.Hex(), org.Image, org.Name, org.Category, org.Raised, org.Goal, org.Donors)
	}
	fmt.Fprintf(a.out, "%d organizations\n", list.Count)
	return nil
}

func (a *app) fund(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fund", flag.ExitOnError)
	amount := fs.String("amount", "", "fiat amount to prefill")
	_ = fs.Parse(args)

	o, err := a.orchestrator()
	if err != nil {
		return err
	}
	session, err := a.requestFunding(ctx, o, *amount)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, session.URL)
	return nil
}

func (a *app) donate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("donate", flag.ExitOnError)
	orgID := fs.String("org", "", "organization id")
	amount := fs.String("amount", "", "token amount to donate")
	name := fs.String("name", "", "donor name")
	email := fs.String("email", "", "donor email")
	message := fs.String("message", "", "message to the organization")
	funded := fs.Bool("funded", false, "skip the on-ramp, the wallet already holds tokens")
	_ = fs.Parse(args)

	if *orgID == "" || *amount == "" {
		return errors.New("-org and -amount are required")
	}

	org, err := a.ledger.GetOrganization(ctx, *orgID)
	if err != nil {
		return err
	}
	destination := a.cfg.PlatformWallet
	if destination == "" {
		destination = org.WalletAddress
	}

	o, err := a.orchestrator()
	if err != nil {
		return err
	}

	if *funded {
		if err := o.MarkFunded(); err != nil {
			return err
		}
	} else {
		session, err := a.requestFunding(ctx, o, *amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Open %s\nPress Enter once the purchase is complete.\n", session.URL)
		if _, err := a.in.ReadString('\n'); err != nil {
			return err
		}
	}

	intent := donation.Intent{
		OrganizationID: org.ID.Hex(),
		Amount:         *amount,
		Destination:    destination,
		DonorName:      *name,
		DonorEmail:     *email,
		Message:        *message,
	}
	hash, err := o.SubmitTransfer(ctx, intent)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "transaction %s\n", hash)

	d, err := o.Confirm(ctx, hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "donation %s %s\n", d.ID.Hex(), d.Status)
	return nil
}

func (a *app) status(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	id := fs.String("id", "", "donation id")
	_ = fs.Parse(args)
	if *id == "" {
		return errors.New("-id is required")
	}

	d, err := a.ledger.GetDonation(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s  %s %s to %s  %s\n", d.ID.Hex(), d.Amount, a.cfg.Token.Symbol, d.OrganizationName, d.Status)
	if d.TransactionHash != "" {
		fmt.Fprintf(a.out, "transaction %s\n", d.TransactionHash)
	}
	return nil
}

// requestFunding retries once when the first attempt had to sign the donor in.
func (a *app) requestFunding(ctx context.Context, o *donation.Orchestrator, amount string) (*wallet.FundingSession, error) {
	session, err := o.RequestFunding(ctx, amount)
	if errors.Is(err, donation.ErrAuthPending) {
		session, err = o.RequestFunding(ctx, amount)
	}
	return session, err
}

func (a *app) orchestrator() (*donation.Orchestrator, error) {
	provider, err := wallet.NewPrivy(a.cfg.Privy, a.cfg.ChainID, wallet.NewSession(),
		wallet.NewMoonPay(a.cfg.MoonPay), a.promptToken, a.log)
	if err != nil {
		return nil, err
	}
	token := donation.Token{
		Address:  a.cfg.Token.Address,
		Symbol:   a.cfg.Token.Symbol,
		Decimals: a.cfg.Token.Decimals,
		ChainID:  a.cfg.ChainID,
	}
	return donation.New(provider, a.ledger, token, func(status string) {
		fmt.Fprintln(a.out, status)
	}, a.log), nil
}

func (a *app) promptToken(ctx context.Context) (string, error) {
	fmt.Fprint(a.out, "Privy access token: ")
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func describe(err error) string {
	var derr *donation.Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	var apiErr *ledger.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
