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
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"finance/internal/amqp"
	"finance/internal/app"
	"finance/internal/auth"
	"finance/internal/cli"
	"finance/internal/core"
	"finance/internal/log"
	"finance/internal/notify"
	"finance/internal/render"
	"finance/internal/services"
)

const dateLayout = "2006-01-02"

var errUsage = errors.New("usage")

type env struct {
	app    *app.App
	logger *log.Logger
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"login":              {"sign in with username and password", cmdLogin},
	"login-biometric":    {"sign in with the device authenticator", cmdLoginBiometric},
	"register-biometric": {"enable biometric login for this device", cmdRegisterBiometric},
	"logout":             {"end the session", cmdLogout},
	"invoice":            {"list movements for a month, year and category", cmdInvoice},
	"movement":           {"show one movement", cmdMovement},
	"create":             {"record a movement", cmdCreate},
	"update":             {"edit a movement", cmdUpdate},
	"delete":             {"delete a movement", cmdDelete},
	"categories":         {"list categories", cmdCategories},
	"category-create":    {"create a category", cmdCategoryCreate},
	"months":             {"list months", cmdMonths},
	"years":              {"list years", cmdYears},
	"sync-next":          {"copy a month's movements into the next month", cmdSyncNext},
	"savings":            {"set the savings value", cmdSavings},
	"savings-clear":      {"clear the savings value", cmdSavingsClear},
	"export":             {"export a month's invoice to the configured backend", cmdExport},
	"events":             {"print events relayed through AMQP until interrupted", cmdEvents},
}

func newFlags(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet("finance "+name, flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func required(fs *flag.FlagSet, name, value string) error {
	if strings.TrimSpace(value) == "" {
		fmt.Fprintf(fs.Output(), "-%s is required\n", name)
		fs.Usage()
		return errUsage
	}
	return nil
}

func readLine(e *env, prompt string) (string, error) {
	fmt.Fprint(e.errOut, prompt)
	line, err := bufio.NewReader(e.in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "login")
	user := fs.String("user", "", "username (email)")
	passwordStdin := fs.Bool("password-stdin", false, "read the password from stdin without a prompt")
	if err := parse(fs, args); err != nil {
		return err
	}

	prompt := "Senha: "
	if *passwordStdin {
		prompt = ""
	}
	password, err := readLine(e, prompt)
	if err != nil {
		return err
	}

	if err := e.app.Auth.Login(ctx, services.LoginForm{Username: *user, Password: password}); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Login realizado.")

	if e.app.Biometric.Offered() && !e.app.Biometric.HasCredential(ctx, *user) {
		fmt.Fprintln(e.errOut, "Dica: rode `finance register-biometric -user "+*user+"` para entrar com Touch ID.")
	}
	return nil
}

func cmdLoginBiometric(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "login-biometric")
	user := fs.String("user", "", "username (email)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := e.app.Biometric.Login(ctx, *user); err != nil {
		if errors.Is(err, auth.ErrNoCredential) {
			return fmt.Errorf("%w; run `finance register-biometric` after a password login", err)
		}
		return err
	}
	fmt.Fprintln(e.out, "Login realizado.")
	return nil
}

func cmdRegisterBiometric(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "register-biometric")
	user := fs.String("user", "", "username the credential is stored under")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := e.app.Biometric.Register(ctx, *user); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Login biométrico ativado.")
	return nil
}

func cmdLogout(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "logout")
	forget := fs.String("forget-biometric", "", "also remove the biometric credential stored for this username")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *forget != "" {
		if err := e.app.Biometric.Forget(ctx, *forget); err != nil {
			return err
		}
	}
	if err := e.app.Auth.Logout(ctx); err != nil {
		e.logger.WarnContext(ctx, "Server logout failed, local session cleared", log.FieldError, err)
	}
	fmt.Fprintln(e.out, "Sessão encerrada.")
	return nil
}

func filterFlags(fs *flag.FlagSet) *core.Filter {
	f := &core.Filter{}
	fs.StringVar(&f.Month, "month", "", "month number; empty filter means the current month")
	fs.StringVar(&f.Year, "year", "", "year")
	fs.StringVar(&f.Category, "category", "", "category id")
	return f
}

func cmdInvoice(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "invoice")
	f := filterFlags(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	inv, err := e.app.Queries.Invoice(ctx, *f)
	if err != nil {
		return err
	}
	return render.Invoice(e.out, inv)
}

func cmdMovement(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "movement")
	id := fs.String("id", "", "movement id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}
	m, err := e.app.Queries.Movement(ctx, *id)
	if err != nil {
		return err
	}
	return render.Movement(e.out, m)
}

// formFlags binds the movement form. date is kept as text so an unset flag
// can be told apart from an invalid one.
type formFlags struct {
	date        string
	category    string
	kind        string
	amount      string
	description string
}

func bindForm(fs *flag.FlagSet) *formFlags {
	ff := &formFlags{}
	fs.StringVar(&ff.date, "date", "", "date as YYYY-MM-DD")
	fs.StringVar(&ff.category, "category", "", "category id")
	fs.StringVar(&ff.kind, "kind", "", "entrada or saida")
	fs.StringVar(&ff.amount, "amount", "", "amount, e.g. 1.234,50 or 123450")
	fs.StringVar(&ff.description, "description", "", "free text")
	return ff
}

// apply overlays the flags that were set on base.
func (ff *formFlags) apply(fs *flag.FlagSet, base services.MovementForm) (services.MovementForm, error) {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "date":
			d, perr := time.ParseInLocation(dateLayout, ff.date, time.Local)
			if perr != nil {
				err = fmt.Errorf("invalid -date %q: want YYYY-MM-DD", ff.date)
				return
			}
			base.Date = d
		case "category":
			base.Category = ff.category
		case "kind":
			base.Kind = ff.kind
		case "amount":
			base.Amount = ff.amount
		case "description":
			base.Description = ff.description
		}
	})
	return base, err
}

func cmdCreate(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "create")
	ff := bindForm(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	form, err := ff.apply(fs, services.MovementForm{Category: services.NoSelection})
	if err != nil {
		return err
	}
	m, err := e.app.Movements.Create(ctx, form)
	if err != nil {
		return err
	}
	if m.ID != "" {
		fmt.Fprintln(e.out, m.ID)
	}
	return nil
}

func cmdUpdate(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "update")
	id := fs.String("id", "", "movement id")
	ff := bindForm(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}

	current, err := e.app.Queries.Movement(ctx, *id)
	if err != nil {
		return err
	}
	form, err := ff.apply(fs, services.FormFromMovement(current))
	if err != nil {
		return err
	}
	_, err = e.app.Movements.Update(ctx, *id, form)
	return err
}

func cmdDelete(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "delete")
	id := fs.String("id", "", "movement id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := required(fs, "id", *id); err != nil {
		return err
	}
	return e.app.Movements.Delete(ctx, *id)
}

func cmdCategories(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags(e, "categories"), args); err != nil {
		return err
	}
	categories, err := e.app.Queries.Categories(ctx)
	if err != nil {
		return err
	}
	return render.Categories(e.out, categories)
}

func cmdCategoryCreate(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "category-create")
	description := fs.String("description", "", "category name")
	if err := parse(fs, args); err != nil {
		return err
	}
	c, err := e.app.Catalog.CreateCategory(ctx, *description)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, c.ID)
	return nil
}

func cmdMonths(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags(e, "months"), args); err != nil {
		return err
	}
	months, err := e.app.Queries.Months(ctx)
	if err != nil {
		return err
	}
	return render.Months(e.out, months)
}

func cmdYears(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags(e, "years"), args); err != nil {
		return err
	}
	years, err := e.app.Queries.Years(ctx)
	if err != nil {
		return err
	}
	return render.Years(e.out, years)
}

// parseIndexes reads "2,0,5" into a descending, de-duplicated list so drafts
// can be removed without shifting the remaining indexes.
func parseIndexes(s string) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid draft index %q", part)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

// interruptible ends ctx on SIGINT or SIGTERM so a running sync stops
// between submissions instead of killing the process mid-request.
var interruptible = func(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func cmdSyncNext(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "sync-next")
	month := fs.Int("month", 0, "source month")
	year := fs.Int("year", 0, "source year")
	skip := fs.String("skip", "", "comma separated draft indexes to leave out")
	yes := fs.Bool("yes", false, "submit the drafts; without it only the preview is printed")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *month == 0 || *year == 0 {
		now := time.Now()
		*month, *year = int(now.Month()), now.Year()
	}
	indexes, err := parseIndexes(*skip)
	if err != nil {
		return err
	}

	inv, err := e.app.Queries.Invoice(ctx, core.Filter{Month: strconv.Itoa(*month), Year: strconv.Itoa(*year)})
	if err != nil {
		return err
	}
	categories, err := e.app.Queries.Categories(ctx)
	if err != nil {
		return err
	}

	if _, err := e.app.Sync.Generate(inv.Movements, categories); err != nil {
		return err
	}
	for _, i := range indexes {
		if err := e.app.Sync.Remove(i); err != nil {
			return err
		}
	}

	if err := render.Drafts(e.out, e.app.Sync.Drafts()); err != nil {
		return err
	}
	if !*yes {
		fmt.Fprintln(e.errOut, "Prévia apenas. Rode novamente com -yes para sincronizar.")
		return nil
	}

	syncCtx, stop := interruptible(ctx)
	defer stop()
	report, err := e.app.Sync.Sync(syncCtx)
	for _, f := range report.Failures {
		fmt.Fprintf(e.errOut, "  #%d %s: %v\n", f.Index, core.FormatCurrency(f.Draft.Amount), f.Err)
	}
	return err
}

func cmdSavings(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "savings")
	value := fs.String("value", "", "savings amount, e.g. 300,00")
	if err := parse(fs, args); err != nil {
		return err
	}
	amount, err := core.ParseAmount(*value)
	if err != nil {
		return fmt.Errorf("invalid -value %q: %w", *value, err)
	}
	return e.app.Catalog.UpsertSavings(ctx, amount)
}

func cmdSavingsClear(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlags(e, "savings-clear"), args); err != nil {
		return err
	}
	return e.app.Catalog.ClearSavings(ctx)
}

func cmdExport(ctx context.Context, e *env, args []string) error {
	fs := newFlags(e, "export")
	month := fs.Int("month", int(time.Now().Month()), "month")
	year := fs.Int("year", time.Now().Year(), "year")
	if err := parse(fs, args); err != nil {
		return err
	}
	svc, err := e.app.Exporter(ctx)
	if err != nil {
		return err
	}
	ref, err := svc.Export(ctx, *month, *year)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, ref)
	return nil
}

func cmdEvents(_ context.Context, e *env, args []string) error {
	if err := parse(newFlags(e, "events"), args); err != nil {
		return err
	}
	broker := e.app.Broker()
	if broker == nil {
		return errors.New("AMQP_URL is not set or the broker is unreachable")
	}

	ctx, done := cli.GracefulShutdown(e.logger, 5*time.Second, nil)
	err := broker.ConsumeEvents(ctx, func(msg *amqp.EventMessage) error {
		printEvent(e.out, msg)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		cli.WaitForShutdown(ctx, done)
		return nil
	}
	return err
}

func printEvent(w io.Writer, msg *amqp.EventMessage) {
	stamp := msg.Timestamp.Local().Format("15:04:05")
	switch {
	case msg.Notification != nil:
		n := msg.Notification
		fmt.Fprintf(w, "%s %s\n", stamp, render.Notification(notify.Notification{
			ID: n.ID, Kind: notify.Kind(n.Kind), Title: n.Title, Description: n.Description,
		}))
	case msg.SyncReport != nil:
		r := msg.SyncReport
		fmt.Fprintf(w, "%s sync: %d/%d ok, %d failed, aborted=%t\n", stamp, r.Succeeded, r.Total, r.Failed, r.Aborted)
	}
}
