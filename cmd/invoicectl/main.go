package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"invoice-console/internal/backend"
	"invoice-console/internal/dashboard"
	"invoice-console/internal/poller"
	"invoice-console/internal/reviews"
	"invoice-console/internal/submissions"
	"invoice-console/internal/workflows"
)

const defaultBackend = "http://localhost:8000"

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var (
	exitFn           = os.Exit
	stdin  io.Reader = os.Stdin
)

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "workflows":
		return handleWorkflows(args[2:], stdout, stderr)
	case "reviews":
		return handleReviews(args[2:], stdout, stderr)
	case "decide":
		return handleDecide(args[2:], stdout, stderr)
	case "delete":
		return handleDelete(args[2:], stdout, stderr)
	case "submit":
		return handleSubmit(args[2:], stdout, stderr)
	case "status":
		return handleStatus(args[2:], stdout, stderr)
	case "watch":
		return handleWatch(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

type backendFlags struct {
	addr    *string
	token   *string
	timeout *time.Duration
}

func addBackendFlags(fs *flag.FlagSet) backendFlags {
	return backendFlags{
		addr:    fs.String("backend", envOrDefault("BACKEND_URL", defaultBackend), "workflow backend base URL"),
		token:   fs.String("token", os.Getenv("BACKEND_TOKEN"), "bearer token for the backend"),
		timeout: fs.Duration("timeout", 30*time.Second, "per-request timeout"),
	}
}

func (b backendFlags) client() *backend.HTTPClient {
	httpClient := backend.NewHTTPClient(context.Background(), backend.AuthConfig{Token: *b.token}, *b.timeout)
	return backend.New(*b.addr, httpClient)
}

func handleWorkflows(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("workflows", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bf := addBackendFlags(fs)
	tabRaw := fs.String("filter", string(workflows.TabAll), "tab: all, pending, accepted, rejected, completed")
	fieldRaw := fs.String("sort", string(workflows.SortCreatedAt), "sort field: created_at, amount, vendor_name, invoice_id, status")
	orderRaw := fs.String("order", string(workflows.Descending), "sort direction: asc or desc")
	jsonOut := fs.Bool("json", false, "print the rendered view as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	tab, err := workflows.ParseTab(*tabRaw)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	field, err := workflows.ParseSortField(*fieldRaw)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	dir, err := workflows.ParseDirection(*orderRaw)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	view := dashboard.NewView(bf.client(), 0)
	defer view.Close()
	if err := view.Refresh(context.Background()); err != nil {
		fmt.Fprintln(stderr, "fetch workflows:", backend.Message(err, ""))
		return 1
	}
	view.SetTab(tab)
	view.SetSort(workflows.SortState{Field: field, Direction: dir})
	snap := view.Render()

	if *jsonOut {
		return writeJSON(stdout, stderr, snap)
	}
	printDashboard(stdout, snap)
	return 0
}

func printDashboard(w io.Writer, snap dashboard.Snapshot) {
	c := snap.Counts
	fmt.Fprintf(w, "all=%d pending=%d accepted=%d rejected=%d completed=%d showing=%s\n",
		c.All, c.Pending, c.Accepted, c.Rejected, c.Completed, snap.Tab)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "THREAD\tINVOICE\tVENDOR\tAMOUNT\tSTATUS\tDECISION\tSTAGE\tCREATED")
	for _, r := range snap.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ThreadID, r.InvoiceID, r.VendorName, r.Amount, r.Status.Label, r.Decision.Label, r.CurrentStage, r.CreatedAt)
	}
	_ = tw.Flush()
}

func handleReviews(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("reviews", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bf := addBackendFlags(fs)
	jsonOut := fs.Bool("json", false, "print the rendered queue as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	queue := reviews.NewQueue(bf.client(), reviews.Options{})
	defer queue.Close()
	if err := queue.Refresh(context.Background()); err != nil {
		fmt.Fprintln(stderr, "fetch pending reviews:", backend.Message(err, ""))
		return 1
	}
	snap := queue.Render()
	if *jsonOut {
		return writeJSON(stdout, stderr, snap)
	}
	printReviews(stdout, snap)
	return 0
}

func printReviews(w io.Writer, snap reviews.Snapshot) {
	if len(snap.Items) == 0 {
		fmt.Fprintln(w, "No pending reviews")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECKPOINT\tINVOICE\tVENDOR\tAMOUNT\tFAILED STAGE\tREASON")
	for _, it := range snap.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.CheckpointID, it.InvoiceID, it.VendorName, it.Amount, it.FailedStage, it.Reason)
	}
	_ = tw.Flush()
}

func handleDecide(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("decide", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bf := addBackendFlags(fs)
	decision := fs.String("decision", "", "accept or reject")
	notes := fs.String("notes", "", "reviewer notes")
	if err := fs.Parse(reorder(args, fs)); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "decide requires <checkpoint_id>")
		return 2
	}

	queue := reviews.NewQueue(bf.client(), reviews.Options{})
	defer queue.Close()
	out, err := queue.Decide(context.Background(), fs.Arg(0), *decision, *notes)
	if err != nil {
		switch {
		case errors.Is(err, workflows.ErrDecisionRequired), errors.Is(err, workflows.ErrUnknownDecision):
			fmt.Fprintln(stderr, err)
			return 2
		case out.Message != "":
			fmt.Fprintln(stderr, out.Message)
		default:
			fmt.Fprintln(stderr, err)
		}
		return 1
	}
	fmt.Fprintln(stdout, out.Message)
	return 0
}

func handleDelete(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bf := addBackendFlags(fs)
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(reorder(args, fs)); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "delete requires <thread_id>")
		return 2
	}

	view := dashboard.NewView(bf.client(), 0)
	defer view.Close()
	ctx := context.Background()
	_ = view.Refresh(ctx)

	var confirm dashboard.Confirmer = dashboard.AlwaysConfirm
	if !*yes {
		confirm = promptConfirmer{in: bufio.NewReader(stdin), out: stdout}
	}
	switch err := view.Delete(ctx, fs.Arg(0), confirm); {
	case err == nil:
		fmt.Fprintf(stdout, "deleted %s\n", fs.Arg(0))
		return 0
	case errors.Is(err, dashboard.ErrDeleteDeclined):
		fmt.Fprintln(stderr, "delete cancelled")
		return 1
	default:
		fmt.Fprintln(stderr, "delete failed:", backend.Message(err, ""))
		return 1
	}
}

type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", prompt)
	line, _ := p.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func handleSubmit(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bf := addBackendFlags(fs)
	form := submissions.NewForm()
	fs.StringVar(&form.InvoiceID, "invoice-id", "", "invoice number")
	fs.StringVar(&form.VendorName, "vendor", "", "vendor name")
	fs.StringVar(&form.VendorTaxID, "vendor-tax-id", "", "vendor tax id")
	fs.StringVar(&form.InvoiceDate, "invoice-date", "", "invoice date (YYYY-MM-DD)")
	fs.StringVar(&form.DueDate, "due-date", "", "due date (YYYY-MM-DD)")
	amount := fs.String("amount", "", "grand total")
	fs.StringVar(&form.Currency, "currency", "USD", "USD, EUR or GBP")
	var lines, files listFlag
	fs.Var(&lines, "line", "line item desc:qty:unit_price (repeatable)")
	fs.Var(&files, "file", "attachment path (repeatable)")
	jsonOut := fs.Bool("json", false, "print the backend response as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	form.Amount = submissions.Input(*amount)

	if len(lines) > 0 {
		form.LineItems = form.LineItems[:0]
		for _, raw := range lines {
			li, err := parseLine(raw)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 2
			}
			form.LineItems = append(form.LineItems, li)
		}
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(stderr, "read attachment:", err)
			return 1
		}
		if err := form.AddAttachment(filepath.Base(path), data); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
	}

	view := submissions.NewView(bf.client(), 0)
	defer view.Close()
	res, err := view.Submit(context.Background(), form)
	if err != nil {
		if submissions.IsValidation(err) {
			fmt.Fprintln(stderr, err)
			return 2
		}
		fmt.Fprintln(stderr, "submit failed:", backend.Message(err, ""))
		return 1
	}

	if *jsonOut {
		return writeJSON(stdout, stderr, res)
	}
	fmt.Fprintf(stdout, "%s\nthread_id=%s status=%s\n", res.Message, res.ThreadID, res.Status)
	if res.CheckpointID != "" {
		fmt.Fprintf(stdout, "checkpoint_id=%s\n", res.CheckpointID)
	}
	if res.Paused() {
		fmt.Fprintf(stdout, "Invoice needs human review: invoicectl decide %s --decision accept|reject\n", res.CheckpointID)
	}
	return 0
}

// parseLine reads "desc:qty:unit_price". The description may itself contain colons.
func parseLine(raw string) (submissions.LineItem, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return submissions.LineItem{}, fmt.Errorf("line %q: expected desc:qty:unit_price", raw)
	}
	n := len(parts)
	desc := strings.Join(parts[:n-2], ":")
	return submissions.NewLineItem(desc, submissions.Input(parts[n-2]), submissions.Input(parts[n-1])), nil
}

func handleStatus(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bf := addBackendFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "status requires <thread_id>")
		return 2
	}

	res, err := bf.client().WorkflowStatus(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "status failed:", backend.Message(err, ""))
		return 1
	}
	return writeJSON(stdout, stderr, res)
}

func handleWatch(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bf := addBackendFlags(fs)
	viewName := fs.String("view", "dashboard", "dashboard or reviews")
	interval := fs.Duration("interval", 5*time.Second, "polling period")
	count := fs.Int("count", 0, "stop after this many refreshes (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	client := bf.client()
	var refresh func(ctx context.Context) error
	var render func(w io.Writer)
	switch *viewName {
	case "dashboard":
		view := dashboard.NewView(client, *interval)
		defer view.Close()
		refresh = view.Refresh
		render = func(w io.Writer) { printDashboard(w, view.Render()) }
	case "reviews":
		queue := reviews.NewQueue(client, reviews.Options{PollInterval: *interval})
		defer queue.Close()
		refresh = queue.Refresh
		render = func(w io.Writer) { printReviews(w, queue.Render()) }
	default:
		fmt.Fprintf(stderr, "unknown view %q\n", *viewName)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group := poller.NewGroup(ctx)
	var (
		mu   sync.Mutex
		runs int
	)
	group.Every(*interval, func(ctx context.Context) {
		err := refresh(ctx)
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil || (*count > 0 && runs >= *count) {
			return
		}
		runs++
		fmt.Fprintf(stdout, "--- %s\n", time.Now().Format(time.RFC3339))
		if err != nil {
			fmt.Fprintln(stdout, "error:", backend.Message(err, ""))
		} else {
			render(stdout)
		}
		if *count > 0 && runs >= *count {
			cancel()
		}
	})
	<-ctx.Done()
	group.Close()
	return 0
}

// reorder moves flags ahead of positional arguments so "delete t-1 --yes" parses.
func reorder(args []string, fs *flag.FlagSet) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil {
			if bv, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bv.IsBoolFlag() {
				continue
			}
			if i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
		}
	}
	return append(flags, positional...)
}

func writeJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(stderr, "encode output:", err)
		return 1
	}
	return 0
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: invoicectl <command> [flags]

commands:
  workflows [--filter tab] [--sort field] [--order asc|desc] [--json]
  reviews [--json]
  decide <checkpoint_id> --decision accept|reject [--notes text]
  delete <thread_id> [--yes]
  submit --invoice-id ID --vendor NAME --invoice-date D --due-date D --amount N [--line desc:qty:price]... [--file path]...
  status <thread_id>
  watch [--view dashboard|reviews] [--interval 5s] [--count N]`)
}
