// Command overview loads one listing into a local store and prints it the way
// the overview screen shows it. It exits once the request reaches SUCCESS or
// ERROR.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/overview-api/internal/connectivity"
	"github.com/yourorg/overview-api/internal/env"
	"github.com/yourorg/overview-api/internal/logger"
	"github.com/yourorg/overview-api/internal/overview"
	"github.com/yourorg/overview-api/internal/status"
	"github.com/yourorg/overview-api/realestate"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	var (
		filterFlag  = flag.String("filter", env.Get("INITIAL_FILTER", "all"), "all, rent or buy")
		baseURL     = flag.String("base-url", env.Get("REALESTATE_BASE_URL", realestate.DefaultBaseURL), "listing service base URL")
		timeout     = flag.Duration("timeout", env.GetDuration("REALESTATE_TIMEOUT", 30*time.Second), "request timeout")
		policyFlag  = flag.String("connectivity", env.Get("CONNECTIVITY_POLICY", "observe"), "observe or enforce")
		emptyAsErr  = flag.Bool("empty-as-error", env.GetBool("EMPTY_AS_ERROR", false), "report an empty body as ERROR")
		selectFirst = flag.Bool("select-first", false, "select the first record and print its detail")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.NewSlog(logger.SlogConfig{Writer: os.Stderr, Level: logger.ParseLevel(level), UseColor: true})

	filter, err := realestate.ParseFilter(*filterFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	policy, err := connectivity.ParsePolicy(*policyFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	client := realestate.NewClient(*baseURL,
		realestate.WithTimeout(*timeout),
		realestate.WithTransport(connectivity.Wrap(connectivity.InterfaceChecker{}, policy)),
		realestate.WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []overview.Option{overview.WithLogger(log), overview.WithContext(ctx)}
	if *emptyAsErr {
		opts = append(opts, overview.WithEmptyPolicy(overview.EmptyAsError))
	}
	st := overview.New(client, opts...)
	defer st.Close()

	ok, err := run(ctx, st, filter, *selectFirst, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !ok {
		return 1
	}
	return 0
}

// run drives st until the request for filter finishes. It reports whether the
// final status was SUCCESS.
func run(ctx context.Context, st *overview.Store, filter realestate.Filter, selectFirst bool, out io.Writer) (bool, error) {
	sub, unsubscribe := st.Subscribe(16)
	defer unsubscribe()

	if err := st.RequestListing(filter); err != nil {
		return false, err
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case evt, open := <-sub:
			if !open {
				return false, overview.ErrClosed
			}
			switch data := evt.Data.(type) {
			case overview.StatusUpdate:
				fmt.Fprint(out, renderStatus(data.Filter, data.Status))
				if data.Status.Kind() == status.KindLoading {
					continue
				}
				records, ok := data.Status.Data()
				if ok && selectFirst && len(records) > 0 {
					if err := st.SelectItem(records[0]); err != nil {
						return false, err
					}
					continue
				}
				return ok, nil
			case overview.SelectionUpdate:
				if data.Record == nil {
					return true, nil
				}
				fmt.Fprint(out, renderDetail(*data.Record))
				st.ClearSelection()
			}
		}
	}
}

func renderStatus(filter realestate.Filter, st overview.Listing) string {
	return status.Fold(st,
		func() string { return fmt.Sprintf("[%s] loading...\n", filter) },
		func(records []realestate.PropertyRecord) string {
			s := fmt.Sprintf("[%s] %d properties\n", filter, len(records))
			for _, r := range records {
				s += fmt.Sprintf("  %-8s %-9s $%.0f\n", r.ID, r.DisplayType(), r.Price)
			}
			return s
		},
		func(msg string) string { return fmt.Sprintf("[%s] error: %s\n", filter, msg) },
	)
}

func renderDetail(r realestate.PropertyRecord) string {
	return fmt.Sprintf("selected %s\n  type:  %s\n  price: $%.0f\n  image: %s\n", r.ID, r.DisplayType(), r.Price, r.ImgSrcURL)
}
