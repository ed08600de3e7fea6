package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"pocketbook/internal/chart"
	"pocketbook/internal/core"
	"pocketbook/internal/report"
	"pocketbook/internal/sheets/google"
)

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"add":        {"-title NAME -amount N [-type expense|income] [-date D] [-note TEXT]", "record a transaction", runAdd},
		"edit":       {"ID [-title NAME] [-amount N] [-type T] [-date D] [-note TEXT]", "change a transaction", runEdit},
		"delete":     {"ID", "delete a transaction", runDelete},
		"list":       {"[-n N]", "list transactions grouped by day", runList},
		"search":     {"QUERY", "search titles and notes", runSearch},
		"report":     {"[-period day|week|month|year] [-date D] [-offset N]", "period totals and charts", runReport},
		"calendar":   {"[-month YYYY-MM] [-day YYYY-MM-DD]", "days with activity and a day's transactions", runCalendar},
		"categories": {"list | add NAME [-icon ICON] | delete ID", "manage categories", runCategories},
		"export":     {"[-o FILE] [-sheets]", "export transactions as JSON or to Google Sheets", runExport},
		"import":     {"FILE", "import an exported JSON file", runImport},
		"stats":      {"", "profile summary", runStats},
		"reset":      {"-yes", "delete all data", runReset},
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: pocketbook <command> [arguments]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range []string{"add", "edit", "delete", "list", "search", "report", "calendar", "categories", "export", "import", "stats", "reset"} {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].help)
	}
	tw.Flush()
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// userMessage maps validation errors to the wording shown to the user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount must be a non-negative number such as 12.50 or 12,50"
	case errors.Is(err, core.ErrEmptyTitle):
		return "a title (category) is required"
	case errors.Is(err, core.ErrInvalidType):
		return "type must be income or expense"
	case errors.Is(err, core.ErrEmptyCategoryName):
		return "category name cannot be empty"
	case errors.Is(err, core.ErrProtectedCategory):
		return "built-in categories cannot be deleted"
	case errors.Is(err, core.ErrTitleTooLong):
		return fmt.Sprintf("title is limited to %d characters", core.MaxTitleLen)
	case errors.Is(err, core.ErrNoteTooLong):
		return fmt.Sprintf("note is limited to %d characters", core.MaxNoteLen)
	case errors.Is(err, core.ErrCategoryTooLong):
		return fmt.Sprintf("category name is limited to %d characters", core.MaxCategoryNameLen)
	case errors.Is(err, core.ErrZeroDate):
		return "a date is required"
	default:
		return err.Error()
	}
}

var dateLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", time.DateOnly}

// parseDate reads a date in the app location. A date without a time takes
// the current time of day.
func (a *app) parseDate(s string) (time.Time, error) {
	now := a.today()
	if s == "" {
		return now, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, a.loc)
		if err != nil {
			continue
		}
		if layout == time.DateOnly {
			t = time.Date(t.Year(), t.Month(), t.Day(), now.Hour(), now.Minute(), now.Second(), 0, a.loc)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or YYYY-MM-DDTHH:MM)", s)
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("add")
	title := fs.String("title", "", "category name")
	amount := fs.String("amount", "", "amount")
	typ := fs.String("type", string(core.Expense), "income or expense")
	date := fs.String("date", "", "date")
	note := fs.String("note", "", "note")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	value, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	t, err := core.ParseTransactionType(*typ)
	if err != nil {
		return err
	}
	d, err := a.parseDate(*date)
	if err != nil {
		return err
	}
	fields := core.TransactionFields{
		Title:  strings.TrimSpace(*title),
		Amount: value,
		Date:   d,
		Type:   t,
		Note:   strings.TrimSpace(*note),
	}
	if err := fields.Validate(); err != nil {
		return err
	}

	tx, err := a.store.AddTransaction(ctx, fields)
	if err != nil {
		return fmt.Errorf("transaction kept for this session but not saved: %w", err)
	}
	fmt.Fprintf(a.out, "Added %s %s %s (%s)\n", tx.Type, tx.Title, core.FormatAmount(tx.Amount), tx.ID)
	return nil
}

func runEdit(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errUsage
	}
	id := args[0]
	if _, ok := a.store.Transaction(id); !ok {
		return fmt.Errorf("no transaction with id %s", id)
	}

	fs := newFlagSet("edit")
	title := fs.String("title", "", "category name")
	amount := fs.String("amount", "", "amount")
	typ := fs.String("type", "", "income or expense")
	date := fs.String("date", "", "date")
	note := fs.String("note", "", "note")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}

	var patch core.TransactionPatch
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "title":
			v := strings.TrimSpace(*title)
			patch.Title = &v
		case "amount":
			var v decimal.Decimal
			v, err = core.ParseAmount(*amount)
			patch.Amount = &v
		case "type":
			var v core.TransactionType
			v, err = core.ParseTransactionType(*typ)
			patch.Type = &v
		case "date":
			var v time.Time
			v, err = a.parseDate(*date)
			patch.Date = &v
		case "note":
			v := strings.TrimSpace(*note)
			patch.Note = &v
		}
	})
	if err != nil {
		return err
	}
	if patch.Empty() {
		return errUsage
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	if err := a.store.UpdateTransaction(ctx, id, patch); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s\n", id)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if _, ok := a.store.Transaction(args[0]); !ok {
		return fmt.Errorf("no transaction with id %s", args[0])
	}
	if err := a.store.DeleteTransaction(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", args[0])
	return nil
}

func runList(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("list")
	n := fs.Int("n", 0, "show only the n most recent")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	txs := a.store.Transactions()
	if *n > 0 {
		txs = report.Recent(txs, *n)
	}
	if len(txs) == 0 {
		fmt.Fprintln(a.out, "No transactions yet.")
		return nil
	}
	printSections(a, report.GroupByCalendarBucket(txs, a.today()))
	return nil
}

func runSearch(_ context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	found := report.SearchText(a.store.Transactions(), strings.Join(args, " "))
	if len(found) == 0 {
		fmt.Fprintln(a.out, "No matches.")
		return nil
	}
	printTransactions(a, found)
	return nil
}

func runReport(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("report")
	period := fs.String("period", "month", "day, week, month or year")
	date := fs.String("date", "", "reference date")
	offset := fs.Int("offset", 0, "periods to move from the reference date")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	g, err := report.ParseGranularity(*period)
	if err != nil {
		return err
	}
	ref, err := a.parseDate(*date)
	if err != nil {
		return err
	}
	dir := report.Next
	if *offset < 0 {
		dir = report.Previous
	}
	for i := 0; i < abs(*offset); i++ {
		ref = report.AdvancePeriod(ref, g, dir)
	}

	txs := a.store.Transactions()
	sum := report.Summarize(txs, ref, g)

	fmt.Fprintf(a.out, "%s\n\n", sum.Label)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Income\t%s\t\n", core.FormatAmount(sum.Income))
	fmt.Fprintf(tw, "Expense\t%s\t\n", core.FormatAmount(sum.Expense))
	fmt.Fprintf(tw, "Balance\t%s\t\n", core.FormatAmount(sum.Balance))
	tw.Flush()

	if top, ok := report.TopCategory(sum.Transactions); ok {
		fmt.Fprintf(a.out, "\nTop category: %s %s\n", top.Name, core.FormatAmount(top.Amount))
	}

	fmt.Fprintln(a.out, "\nExpenses by category:")
	tw = tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, s := range chart.ExpenseShareSeries(sum.Categories) {
		if s.Placeholder {
			fmt.Fprintf(tw, "  %s\t\n", s.Label)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%s\t%.1f%%\n", s.Label, core.FormatAmount(s.Value), s.Percent)
	}
	tw.Flush()

	bars := chart.PeriodBarSeries(txs, g, ref)
	axis := chart.NiceAxisMaximum(chart.MaxBarValue(bars))
	fmt.Fprintf(a.out, "\nIncome / expense (axis max %s):\n", strconv.FormatFloat(axis, 'f', -1, 64))
	tw = tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, b := range bars {
		if b.Income.IsZero() && b.Expense.IsZero() {
			continue
		}
		fmt.Fprintf(tw, "  %s\t+%s\t-%s\n", b.Label, core.FormatAmount(b.Income), core.FormatAmount(b.Expense))
	}
	tw.Flush()
	return nil
}

func runCalendar(_ context.Context, a *app, args []string) error {
	fs := newFlagSet("calendar")
	month := fs.String("month", "", "month to mark, YYYY-MM")
	day := fs.String("day", "", "day to list, YYYY-MM-DD")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	ref := a.today()
	if *month != "" {
		m, err := time.ParseInLocation("2006-01", *month, a.loc)
		if err != nil {
			return fmt.Errorf("invalid month %q (want YYYY-MM)", *month)
		}
		ref = m
	}
	selected := ref
	if *day != "" {
		d, err := a.parseDate(*day)
		if err != nil {
			return err
		}
		selected = d
		if *month == "" {
			ref = d
		}
	}

	txs := a.store.Transactions()
	marks := report.CalendarMarks(txs, a.loc)
	start, end := report.PeriodBounds(ref, report.Month)
	fmt.Fprintf(a.out, "%s\n", report.PeriodLabel(ref, report.Month))
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		m, ok := marks[d.Format(time.DateOnly)]
		if !ok {
			continue
		}
		flags := ""
		if m.Income {
			flags += "+"
		}
		if m.Expense {
			flags += "-"
		}
		fmt.Fprintf(a.out, "  %2d %s\n", d.Day(), flags)
	}

	onDay := report.OnDay(txs, selected)
	fmt.Fprintf(a.out, "\n%s: %s\n", selected.Format("2 January 2006"), core.FormatAmount(report.DayNet(txs, selected)))
	if len(onDay) == 0 {
		fmt.Fprintln(a.out, "  No transactions on this day.")
		return nil
	}
	printTransactions(a, onDay)
	return nil
}

func runCategories(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	switch args[0] {
	case "list":
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for _, c := range a.store.Categories() {
			kind := "built-in"
			if c.IsCustom {
				kind = "custom"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Icon, kind)
		}
		return tw.Flush()
	case "add":
		if len(args) < 2 {
			return errUsage
		}
		fs := newFlagSet("categories add")
		icon := fs.String("icon", "pricetag", "icon key")
		if err := parseFlags(fs, args[2:]); err != nil {
			return err
		}
		name := strings.TrimSpace(args[1])
		if err := core.ValidateCategoryName(name); err != nil {
			return err
		}
		c, err := a.store.AddCategory(ctx, name, *icon)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added category %s (%s)\n", c.Name, c.ID)
		return nil
	case "delete":
		if len(args) != 2 {
			return errUsage
		}
		if err := a.store.DeleteCategory(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Deleted category %s\n", args[1])
		return nil
	default:
		return errUsage
	}
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("export")
	out := fs.String("o", "", "write to file instead of stdout")
	toSheets := fs.Bool("sheets", false, "export to the configured Google Sheet")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if *toSheets {
		sc := a.cfg.Sheets
		if sc.SpreadsheetID == "" {
			return errors.New("no spreadsheet configured (set sheets.spreadsheet_id)")
		}
		exporter, err := google.New(ctx, google.FromAppConfig(sc, a.loc), a.logger.Slog())
		if err != nil {
			return err
		}
		n, err := exporter.ExportTransactions(ctx, a.store.Transactions())
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Exported %d transactions to sheet %s\n", n, sc.SheetName)
		return nil
	}

	if *out == "" {
		return a.store.ExportJSON(a.out)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := a.store.ExportJSON(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	fmt.Fprintf(a.out, "Exported %d transactions to %s\n", a.store.Stats().Transactions, *out)
	return nil
}

func runImport(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	n, err := a.store.ImportJSON(ctx, f)
	if err != nil {
		// not wrapped: the record position matters more than the mapped wording
		return fmt.Errorf("import %s: %v", args[0], err)
	}
	fmt.Fprintf(a.out, "Imported %d transactions\n", n)
	return nil
}

func runStats(_ context.Context, a *app, _ []string) error {
	st := a.store.Stats()
	txs := a.store.Transactions()
	fmt.Fprintf(a.out, "Transactions: %d\n", st.Transactions)
	fmt.Fprintf(a.out, "Custom categories: %d\n", st.CustomCategories)
	fmt.Fprintf(a.out, "Balance: %s\n", core.FormatAmount(report.Balance(txs)))
	return nil
}

func runReset(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("reset")
	yes := fs.Bool("yes", false, "confirm")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("refusing to delete all data without -yes")
	}
	if err := a.store.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "All data deleted.")
	return nil
}

func printSections(a *app, sections []report.Section) {
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		fmt.Fprintln(a.out, strings.ToUpper(s.Label))
		printTransactions(a, s.Transactions)
	}
}

func printTransactions(a *app, txs []core.Transaction) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, t := range txs {
		sign := "-"
		if t.Type == core.Income {
			sign = "+"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s%s\t%s\t%s\n",
			t.Date.In(a.loc).Format("02 Jan 15:04"), t.Title, sign, core.FormatAmount(t.Amount), t.Note, t.ID)
	}
	tw.Flush()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
