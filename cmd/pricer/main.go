// Command pricer prices an order from a JSON file without running the server.
//
//	pricer -f order.json
//	cat order.json | pricer --mode allocate --discount 20000 -o json
//
// The input has the same shape as a pricing API request: items, orderDiscount
// and optionally discountPercent and priceIncludesTax.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dukerupert/tabletill/internal"
	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/service"
)

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := pflag.NewFlagSet("pricer", pflag.ContinueOnError)
	flags.StringP("file", "f", "-", "order JSON file, - for stdin")
	flags.StringP("mode", "m", "reconcile", "allocate, recompute or reconcile")
	flags.StringP("output", "o", "table", "table or json")
	flags.String("discount", "", "order discount amount, replaces the one in the file")
	flags.String("percent", "", "order discount as a percentage of the order total")
	flags.Bool("price-includes-tax", false, "unit prices already include tax")
	flags.String("log-level", "warn", "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	v.SetEnvPrefix("PRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	logger := internal.NewLogger(os.Stderr, "dev", v.GetString("log-level"))

	req, err := readRequest(v.GetString("file"), stdin)
	if err != nil {
		return err
	}

	if s := v.GetString("discount"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("invalid --discount %q: %w", s, err)
		}
		req.OrderDiscount = d
		req.DiscountPercent = nil
	}
	if s := v.GetString("percent"); s != "" {
		p, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("invalid --percent %q: %w", s, err)
		}
		req.DiscountPercent = &p
	}
	if v.IsSet("price-includes-tax") {
		inclusive := v.GetBool("price-includes-tax")
		req.PriceIncludesTax = &inclusive
	}

	svc := service.NewPricingService(service.StaticPolicy{}, nil, logger)
	ctx := context.Background()

	var a *pricing.Allocation
	switch mode := v.GetString("mode"); mode {
	case "allocate":
		a, err = svc.Allocate(ctx, req)
	case "recompute":
		a, err = svc.Recompute(ctx, req)
	case "reconcile":
		a, err = svc.Reconcile(ctx, req)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return describe(err)
	}

	switch output := v.GetString("output"); output {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pricing.Payload(*a))
	case "table":
		return writeTable(stdout, req.Items, *a)
	default:
		return fmt.Errorf("unknown output %q", output)
	}
}

func readRequest(path string, stdin io.Reader) (service.QuoteRequest, error) {
	var req service.QuoteRequest

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return req, fmt.Errorf("failed to open order file: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode order: %w", err)
	}
	return req, nil
}

func writeTable(w io.Writer, items []pricing.LineItem, a pricing.Allocation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tproduct\tqty\tunit price\tdiscount\tbefore tax\ttax\ttotal\t")
	for i, item := range a.Items {
		name := item.ProductID
		if i < len(items) && items[i].Name != "" {
			name = items[i].Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			i+1, name, item.Quantity,
			pricing.FormatAmount(item.UnitPrice),
			pricing.FormatAmount(item.Discount),
			pricing.FormatAmount(item.PriceBeforeTax),
			pricing.FormatAmount(item.Tax),
			pricing.FormatAmount(item.Total))
	}
	fmt.Fprintf(tw, "\t\t\t\t\t\t\t\t\n")
	fmt.Fprintf(tw, "\tsubtotal\t\t\t\t%s\t\t\t\n", pricing.FormatAmount(a.Subtotal))
	fmt.Fprintf(tw, "\tdiscount\t\t\t%s\t\t\t\t\n", pricing.FormatAmount(a.Discount))
	fmt.Fprintf(tw, "\ttax\t\t\t\t\t%s\t\t\n", pricing.FormatAmount(a.Tax))
	fmt.Fprintf(tw, "\ttotal\t\t\t\t\t\t%s\t\n", pricing.FormatAmount(a.Total))
	fmt.Fprintf(tw, "\tmode\t%s\t\t\t\t\t\t\n", a.Mode)
	return tw.Flush()
}

// describe turns domain errors into a readable message, listing field
// failures one per line.
func describe(err error) error {
	fields := domain.GetValidationFields(err)
	if len(fields) == 0 {
		return fmt.Errorf("%s", domain.ErrorMessage(err))
	}

	var b strings.Builder
	b.WriteString("invalid order:")
	for _, field := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(&b, "\n  %s: %s", field, fields[field])
	}
	return fmt.Errorf("%s", b.String())
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pricer:", err)
		os.Exit(1)
	}
}
