package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/marcelsud/webhook-courier/delivery"
	"github.com/marcelsud/webhook-courier/emitter"
	"github.com/sirupsen/logrus"
)

/* Command-line front end for the delivery engine
 *
 *   courier send <url> --payload '{"k":"v"}' [--payload-file f] [--header 'K: V']...
 *   courier batch <file> [--concurrent n]
 *   courier emit <event_type> --data '{"k":"v"}' --targets targets.yaml
 *
 * Shared flags: --secret, --retries, --timeout
 */

type headerList []string

func (h *headerList) String() string { return strings.Join(*h, ", ") }

func (h *headerList) Set(value string) error {
	*h = append(*h, value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}

	switch args[0] {
	case "send":
		return runSend(args[1:])
	case "batch":
		return runBatch(args[1:])
	case "emit":
		return runEmit(args[1:])
	default:
		usage()
		return 1
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: courier <send|batch|emit> [options]")
}

// newClient builds a delivery client from the shared CLI flags
func newClient(secret string, retries, timeout, concurrent int, quiet bool) (*delivery.Client, error) {
	log := logrus.New()
	if quiet {
		log.SetLevel(logrus.WarnLevel)
	}
	return delivery.New(delivery.Config{
		SecretKey:     secret,
		Timeout:       time.Duration(timeout) * time.Second,
		MaxRetries:    retries,
		MaxConcurrent: concurrent,
		Logger:        log,
	})
}

func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	secret := fs.String("secret", "", "webhook secret key for signature")
	retries := fs.Int("retries", 3, "maximum delivery attempts")
	timeout := fs.Int("timeout", 30, "request timeout in seconds")
	payload := fs.String("payload", "", "JSON payload string")
	payloadFile := fs.String("payload-file", "", "file containing JSON payload")

	var headers headerList
	fs.Var(&headers, "header", "header in format 'Key: Value' (repeatable)")

	url, err := parseCommand(fs, args, "url")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	body, err := readPayload(*payload, *payloadFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing payload: %v\n", err)
		return 1
	}

	headerMap, err := parseHeaders(headers)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	client, err := newClient(*secret, *retries, *timeout, 0, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("Sending webhook to: %s\n", url)

	rec, err := client.Send(context.Background(), delivery.Target{
		URL:     url,
		Payload: body,
		Headers: headerMap,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	printDelivery(rec)
	if rec.Status == delivery.Failed {
		return 1
	}
	return 0
}

func runBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	secret := fs.String("secret", "", "webhook secret key for signature")
	retries := fs.Int("retries", 3, "maximum delivery attempts")
	timeout := fs.Int("timeout", 30, "request timeout in seconds")
	concurrent := fs.Int("concurrent", 5, "maximum concurrent deliveries")

	batchFile, err := parseCommand(fs, args, "batch file")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	data, err := os.ReadFile(batchFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading batch file: %v\n", err)
		return 1
	}

	var targets []delivery.Target
	if err := json.Unmarshal(data, &targets); err != nil {
		fmt.Fprintf(os.Stderr, "Batch file must contain a JSON array of webhook configurations: %v\n", err)
		return 1
	}

	client, err := newClient(*secret, *retries, *timeout, *concurrent, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// Progress callback: report each delivery as it finishes. Callbacks
	// fire from concurrent delivery goroutines, hence the atomic counter
	var completed atomic.Int64
	client.AddDeliveryCallback(func(rec delivery.Delivery) {
		if rec.Status.IsFinal() {
			fmt.Printf("Progress: %d/%d - %s: %s\n", completed.Add(1), len(targets), rec.ID, rec.Status)
		}
	})

	fmt.Printf("Sending %d webhooks...\n", len(targets))

	if _, err := client.SendMultiple(context.Background(), targets); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	stats := client.GetDeliveryStats()
	fmt.Printf("\nBatch Results:\n")
	fmt.Printf("Total: %d\n", len(targets))
	fmt.Printf("Success: %d\n", stats[delivery.Succeeded.String()])
	fmt.Printf("Failed: %d\n", stats[delivery.Failed.String()])

	if stats[delivery.Failed.String()] > 0 {
		return 1
	}
	return 0
}

func runEmit(args []string) int {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	secret := fs.String("secret", "", "webhook secret key for signature")
	retries := fs.Int("retries", 3, "maximum delivery attempts")
	timeout := fs.Int("timeout", 30, "request timeout in seconds")
	data := fs.String("data", "{}", "JSON event data")
	targetsFile := fs.String("targets", "targets.yaml", "YAML file listing target URLs")

	eventType, err := parseCommand(fs, args, "event type")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	urls, err := emitter.LoadTargets(*targetsFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	client, err := newClient(*secret, *retries, *timeout, 0, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	em, err := emitter.New(client, urls)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	records, err := em.Emit(context.Background(), eventType, json.RawMessage(*data))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	exit := 0
	for _, rec := range records {
		fmt.Printf("%s -> %s (attempts: %d)\n", rec.URL, rec.Status, rec.Attempts)
		if rec.Status == delivery.Failed {
			exit = 1
		}
	}
	return exit
}

/* parseCommand extracts the positional argument then parses the
 * remaining flags. The positional must come first: 'send <url> --flag'
 */
func parseCommand(fs *flag.FlagSet, args []string, name string) (string, error) {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return "", fmt.Errorf("%s is required as the first argument", name)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", err
	}
	return args[0], nil
}

func readPayload(payload, payloadFile string) ([]byte, error) {
	var body []byte
	switch {
	case payloadFile != "":
		data, err := os.ReadFile(payloadFile)
		if err != nil {
			return nil, err
		}
		body = data
	case payload != "":
		body = []byte(payload)
	default:
		return nil, fmt.Errorf("either --payload or --payload-file is required")
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("payload must be valid JSON")
	}
	return body, nil
}

func parseHeaders(headers headerList) (map[string]string, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	headerMap := make(map[string]string, len(headers))
	for _, h := range headers {
		key, value, found := strings.Cut(h, ":")
		if !found {
			return nil, fmt.Errorf("invalid header format, expected 'Key: Value': %s", h)
		}
		headerMap[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headerMap, nil
}

func printDelivery(rec delivery.Delivery) {
	fmt.Printf("\nDelivery Results:\n")
	fmt.Printf("ID: %s\n", rec.ID)
	fmt.Printf("Status: %s\n", rec.Status)
	fmt.Printf("Attempts: %d\n", rec.Attempts)
	fmt.Printf("Response Status: %d\n", rec.ResponseStatus)
	if rec.Status == delivery.Failed {
		fmt.Printf("Error: %s\n", rec.ErrorMessage)
	}
}
