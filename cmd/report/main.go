// Command report cleans a SendGrid event export and writes its summary and
// daily reports without starting the API server.
//
//	report -in events.csv -from 2024-01-01 -to 2024-01-31 -subject "Welcome" -out reports/
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ignite/sendgrid-analytics/internal/analytics"
	"github.com/ignite/sendgrid-analytics/internal/config"
	"github.com/ignite/sendgrid-analytics/internal/datanorm"
	"github.com/ignite/sendgrid-analytics/internal/domain"
	"github.com/ignite/sendgrid-analytics/internal/pkg/logger"
	"github.com/ignite/sendgrid-analytics/internal/report"
)

// stringList collects a repeatable flag. It stays nil until the flag is
// given, so an absent flag means "no filter".
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, now time.Time) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (defaults built in when empty)")
	in := fs.String("in", "", "SendGrid event export (CSV)")
	from := fs.String("from", "", "first day to include, YYYY-MM-DD")
	to := fs.String("to", "", "last day to include, YYYY-MM-DD")
	out := fs.String("out", ".", "directory the reports are written to")
	format := fs.String("format", "", "xlsx | csv (defaults to export.default_format)")
	var subjects, excludes stringList
	fs.Var(&subjects, "subject", "only count messages with this subject (repeatable)")
	fs.Var(&excludes, "exclude", "drop events for this recipient (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactsPII())

	filter, err := buildFilter(*from, *to, subjects, excludes)
	if err != nil {
		return err
	}
	if *format == "" {
		*format = cfg.Export.DefaultFormat
	}
	fmtOut, err := report.ParseFormat(*format)
	if err != nil {
		return err
	}

	opts, err := cfg.PipelineOptions()
	if err != nil {
		return err
	}
	benchmarks, err := cfg.DomainBenchmarks()
	if err != nil {
		return err
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := datanorm.NewImporter(opts).Import(f)
	if err != nil {
		return err
	}
	for _, w := range res.Diagnostics.Warnings() {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}

	result := analytics.NewEngine(benchmarks).Compute(res.Records, filter)
	printSummary(stdout, result)

	builder := report.NewBuilder(cfg.EventLabels())
	meta := report.Meta{
		Source:      filepath.Base(*in),
		Filter:      filter,
		Available:   analytics.DiscoverOptions(res.Records),
		GeneratedAt: now,
	}
	reports := []*report.Report{
		builder.Summary(result.Summary, meta),
		builder.Daily(result.Daily, meta),
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	for _, rep := range reports {
		name := report.Filename(cfg.Export.FilenamePrefix, rep.Kind, string(fmtOut), now)
		path := filepath.Join(*out, name)
		if err := writeReport(path, rep, fmtOut, cfg.Export.SheetName); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	return nil
}

func buildFilter(from, to string, subjects, excludes stringList) (domain.Filter, error) {
	f := domain.Filter{
		IncludeSubjects:   subjects,
		ExcludeRecipients: excludes,
	}
	if from == "" && to == "" {
		return f, nil
	}
	if from == "" || to == "" {
		return domain.Filter{}, errors.New("-from and -to must be given together")
	}
	start, err := domain.ParseDay(from)
	if err != nil {
		return domain.Filter{}, err
	}
	end, err := domain.ParseDay(to)
	if err != nil {
		return domain.Filter{}, err
	}
	if start.After(end) {
		return domain.Filter{}, fmt.Errorf("-from %s is after -to %s", start, end)
	}
	f.DateRange = &domain.DateRange{Start: start, End: end}
	return f, nil
}

func writeReport(path string, rep *report.Report, f report.Format, sheet string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(file, rep, f, sheet); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func printSummary(w io.Writer, res analytics.Result) {
	s := res.Summary
	fmt.Fprintln(w, "=========================================================")
	fmt.Fprintln(w, " SendGrid Email Analytics")
	fmt.Fprintln(w, "=========================================================")
	if res.Empty {
		fmt.Fprintln(w, "No data matches the selected filters")
		return
	}
	fmt.Fprintf(w, "Days:            %d\n", s.Days)
	fmt.Fprintf(w, "Processed:       %d\n", s.ProcessedCount)
	fmt.Fprintf(w, "Delivered:       %d\n", s.DeliveredCount)
	fmt.Fprintf(w, "Opened:          %d\n", s.OpenCount)
	fmt.Fprintf(w, "Bounced:         %d\n", s.BounceCount)
	fmt.Fprintf(w, "Delivery rate:   %.2f%% (%s)\n", report.Percent(s.DeliveryRate), s.DeliveryStatus)
	fmt.Fprintf(w, "Open rate:       %.2f%% (%s)\n", report.Percent(s.OpenRate), s.OpenStatus)
	fmt.Fprintf(w, "Bounce rate:     %.2f%% (%s)\n", report.Percent(s.BounceRate), s.BounceStatus)
	fmt.Fprintf(w, "Overall rating:  %s\n", s.Rating)
	fmt.Fprintln(w, "---------------------------------------------------------")
}
