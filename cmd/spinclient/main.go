// Command spinclient spins the wheel against a running server: it picks a
// segment uniformly at random, submits it, and prints the server's decision.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"spinwheel/internal/catalog"
)

type submission struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Domain     string `json:"domain"`
	Discount   int    `json:"discount"`
	CouponCode string `json:"couponCode"`
}

type decision struct {
	Allowed bool   `json:"allowed"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func main() {
	server := pflag.StringP("server", "s", "http://localhost:3000", "base URL of the spinwheel server")
	name := pflag.StringP("name", "n", "", "display name")
	email := pflag.StringP("email", "e", "", "email address")
	timeout := pflag.Duration("timeout", 10*time.Second, "request timeout")
	pflag.Parse()

	if strings.TrimSpace(*name) == "" || strings.TrimSpace(*email) == "" {
		fmt.Fprintln(os.Stderr, "spinclient: --name and --email are required")
		pflag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	_, seg := catalog.Pick(nil)
	fmt.Printf("The wheel stops on: %s\n", seg.Label)

	d, err := spin(ctx, http.DefaultClient, *server, submission{
		Name:       *name,
		Email:      *email,
		Domain:     seg.Domain,
		Discount:   seg.Discount,
		CouponCode: seg.CouponCode,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "spinclient: %v\n", err)
		os.Exit(1)
	}
	os.Exit(report(os.Stdout, seg, d))
}

// spin posts one submission. Any well-formed JSON reply is a decision,
// whatever the status code.
func spin(ctx context.Context, client *http.Client, server string, s submission) (decision, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return decision{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/api/spin", bytes.NewReader(body))
	if err != nil {
		return decision{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return decision{}, err
	}
	defer resp.Body.Close()

	var d decision
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return decision{}, fmt.Errorf("unexpected %s response: %w", resp.Status, err)
	}
	return d, nil
}

// report prints the outcome and returns the exit code. The coupon is shown
// only when the server allowed the spin.
func report(w io.Writer, seg catalog.Segment, d decision) int {
	if !d.Allowed {
		msg := d.Message
		if msg == "" {
			msg = "no coupon granted"
		}
		fmt.Fprintf(w, "Not this time: %s\n", msg)
		return 1
	}
	fmt.Fprintf(w, "You won %d%% OFF %s. Coupon: %s\n", seg.Discount, seg.Domain, seg.CouponCode)
	return 0
}
