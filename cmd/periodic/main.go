// Command periodic is the CLI entry point for a Periodic System run: it
// loads an index document, evaluates every compound and system under a
// profile, and emits the explain-trace/proof-graph/safety-envelope/receipt
// artifacts described in spec.md §4, optionally signed and bundled.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/periodic-system/evaluator/pkg/bundle"
	"github.com/periodic-system/evaluator/pkg/config"
	"github.com/periodic-system/evaluator/pkg/dsse"
	"github.com/periodic-system/evaluator/pkg/evaluator"
	"github.com/periodic-system/evaluator/pkg/sink"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

const dateLayout = "2006-01-02"

// Run is the CLI's testable entry point: parse flags, execute one
// evaluator run, render the requested outputs, and return the process
// exit code (0 pass, 1 usage error, 2 policy failure).
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 || args[1] == "help" || args[1] == "--help" || args[1] == "-h" {
		printUsage(stdout)
		if len(args) < 2 {
			return 1
		}
		return 0
	}
	if strings.HasPrefix(args[1], "-") {
		fmt.Fprintln(stderr, "Error: <index_path> must be the first argument")
		return 1
	}
	indexPath := args[1]

	cmd := flag.NewFlagSet("periodic", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath             string
		strict                 bool
		profile                string
		asOf                   string
		traceFlag              bool
		traceHashOnly          bool
		reportPath             string
		outJSONPath            string
		stdoutJSON             bool
		quiet                  bool
		receiptOut             string
		receiptOutSink         string
		receiptDSSEOut         string
		receiptDSSEKey         string
		receiptDSSEPayloadType string
		receiptDSSEKeyID       string
		receiptDSSEVerify      bool
		receiptDSSEPub         string
		receiptBundleOut       string
		kappaWasm              string
	)

	cmd.StringVar(&configPath, "config", "", "YAML file supplying CLI flag defaults (profile, strict, as_of)")
	cmd.BoolVar(&strict, "strict", false, "treat warnings as failures")
	cmd.StringVar(&profile, "profile", "", "profile name (default: the profiles document's declared default)")
	cmd.StringVar(&asOf, "as_of", "", "evaluation reference date, YYYY-MM-DD (default: now)")
	cmd.BoolVar(&traceFlag, "trace", false, "include the full explain-trace views in the report")
	cmd.BoolVar(&traceHashOnly, "trace_hash_only", false, "emit only summary counts and hashes, no per-violation detail")
	cmd.StringVar(&reportPath, "report", "", "write a Markdown report to this path")
	cmd.StringVar(&outJSONPath, "out-json", "", "write the JSON report to this path")
	cmd.BoolVar(&stdoutJSON, "stdout-json", false, "write the JSON report to stdout")
	cmd.BoolVar(&quiet, "quiet", false, "suppress the default summary line")
	cmd.StringVar(&receiptOut, "receipt-out", "", "write the receipt JSON to this path")
	cmd.StringVar(&receiptOutSink, "receipt-out-sink", "", "explicit sink scheme for receipt/bundle writes (s3, gs, file); default inferred from URI")
	cmd.StringVar(&receiptDSSEOut, "receipt-dsse-out", "", "write a DSSE-signed receipt envelope to this path")
	cmd.StringVar(&receiptDSSEKey, "receipt-dsse-key", "", "PEM-encoded Ed25519 private key for --receipt-dsse-out")
	cmd.StringVar(&receiptDSSEPayloadType, "receipt-dsse-payloadType", "application/vnd.periodic-system.receipt+json", "DSSE payload type")
	cmd.StringVar(&receiptDSSEKeyID, "receipt-dsse-keyid", "", "caller-asserted DSSE key id (sha256:...); must match the derived id")
	cmd.BoolVar(&receiptDSSEVerify, "receipt-dsse-verify", false, "verify the DSSE envelope immediately after signing")
	cmd.StringVar(&receiptDSSEPub, "receipt-dsse-pub", "", "PEM-encoded Ed25519 public key for --receipt-dsse-verify (default: derived from --receipt-dsse-key)")
	cmd.StringVar(&receiptBundleOut, "receipt-bundle-out", "", "write a proof bundle (canonical JSON) to this path")
	cmd.StringVar(&kappaWasm, "kappa-wasm", "", "path to a WASI kappa canonicalizer module; omitted means in-process")

	defaults, defErr := config.Load(extractConfigFlag(args[2:]))
	if defErr != nil {
		fmt.Fprintf(stderr, "Error: --config: %v\n", defErr)
		return 1
	}
	applyConfigDefaults(cmd, defaults)

	if err := cmd.Parse(args[2:]); err != nil {
		return 1
	}
	if cmd.NArg() != 0 {
		fmt.Fprintln(stderr, "Error: unexpected extra positional argument after <index_path>")
		return 1
	}

	if traceHashOnly && (receiptOut != "" || receiptDSSEOut != "" || receiptBundleOut != "" || receiptDSSEVerify) {
		fmt.Fprintln(stderr, "Error: --trace_hash_only cannot be combined with --receipt-out, --receipt-dsse-out, --receipt-bundle-out, or --receipt-dsse-verify")
		return 1
	}
	if receiptDSSEOut != "" && receiptDSSEKey == "" {
		fmt.Fprintln(stderr, "Error: --receipt-dsse-out requires --receipt-dsse-key")
		return 1
	}

	asOfTime := time.Time{}
	if asOf != "" {
		t, err := time.Parse(dateLayout, asOf)
		if err != nil {
			fmt.Fprintf(stderr, "Error: --as_of: %v\n", err)
			return 1
		}
		asOfTime = t
	}

	res, err := evaluator.Run(evaluator.Options{
		IndexPath:     indexPath,
		Strict:        strict,
		Profile:       profile,
		AsOf:          asOfTime,
		KappaWasmPath: kappaWasm,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	rpt := buildReport(res, traceHashOnly, traceFlag)

	if !quiet {
		fmt.Fprintln(stdout, summaryLine(rpt))
	}

	if outJSONPath != "" || stdoutJSON {
		data, jerr := json.MarshalIndent(rpt, "", "  ")
		if jerr != nil {
			fmt.Fprintf(stderr, "Error: marshaling report: %v\n", jerr)
			return 1
		}
		if outJSONPath != "" {
			if werr := writeViaSink(ctx, receiptOutSink, outJSONPath, data); werr != nil {
				fmt.Fprintf(stderr, "Error: writing --out-json: %v\n", werr)
				return 1
			}
		}
		if stdoutJSON {
			// Written synchronously to fd=1 so it survives captured-stdio
			// truncation in callers that buffer stdout.
			if _, werr := os.Stdout.Write(append(data, '\n')); werr != nil {
				fmt.Fprintf(stderr, "Error: writing --stdout-json: %v\n", werr)
				return 1
			}
		}
	}

	if reportPath != "" {
		var buf strings.Builder
		if werr := writeMarkdownReport(&buf, rpt); werr != nil {
			fmt.Fprintf(stderr, "Error: rendering --report: %v\n", werr)
			return 1
		}
		if werr := writeViaSink(ctx, receiptOutSink, reportPath, []byte(buf.String())); werr != nil {
			fmt.Fprintf(stderr, "Error: writing --report: %v\n", werr)
			return 1
		}
	}

	receiptData, rerr := json.MarshalIndent(res.Receipt, "", "  ")
	if rerr != nil {
		fmt.Fprintf(stderr, "Error: marshaling receipt: %v\n", rerr)
		return 1
	}

	if receiptOut != "" {
		if werr := writeViaSink(ctx, receiptOutSink, receiptOut, receiptData); werr != nil {
			fmt.Fprintf(stderr, "Error: writing --receipt-out: %v\n", werr)
			return 1
		}
	}

	var signedEnvelope *dsse.Envelope
	var pubPEM string
	if receiptDSSEOut != "" {
		priv, pub, perr := parseEd25519PrivateKeyPEM(receiptDSSEKey)
		if perr != nil {
			fmt.Fprintf(stderr, "Error: --receipt-dsse-key: %v\n", perr)
			return 1
		}
		env, serr := dsse.Sign(priv, receiptDSSEPayloadType, receiptData, receiptDSSEKeyID, "")
		if serr != nil {
			fmt.Fprintf(stderr, "Error: signing receipt: %v\n", serr)
			return 1
		}
		signedEnvelope = &env

		pemOut, perr := dsse.PublicKeyPEM(pub)
		if perr != nil {
			fmt.Fprintf(stderr, "Error: encoding DSSE public key: %v\n", perr)
			return 1
		}
		pubPEM = pemOut

		if receiptDSSEVerify {
			verifyPub := pub
			if receiptDSSEPub != "" {
				pubData, rerr := os.ReadFile(receiptDSSEPub)
				if rerr != nil {
					fmt.Fprintf(stderr, "Error: --receipt-dsse-pub: %v\n", rerr)
					return 1
				}
				parsed, verr := dsse.ParsePublicKeyPEM(string(pubData))
				if verr != nil {
					fmt.Fprintf(stderr, "Error: --receipt-dsse-pub: %v\n", verr)
					return 1
				}
				verifyPub = parsed
			}
			if verr := dsse.Verify(env, verifyPub); verr != nil {
				fmt.Fprintf(stderr, "Error: DSSE self-verify failed: %v\n", verr)
				return 1
			}
		}

		envData, eerr := json.MarshalIndent(env, "", "  ")
		if eerr != nil {
			fmt.Fprintf(stderr, "Error: marshaling DSSE envelope: %v\n", eerr)
			return 1
		}
		if werr := writeViaSink(ctx, receiptOutSink, receiptDSSEOut, envData); werr != nil {
			fmt.Fprintf(stderr, "Error: writing --receipt-dsse-out: %v\n", werr)
			return 1
		}
	}

	if receiptBundleOut != "" {
		params := bundle.Params{
			Profile:             res.Profile,
			ReceiptHash:         res.ReceiptHashSHA256,
			SPELSemanticsHash:   res.SemanticsDigestHashSHA256,
			Envelope:            res.SafetyEnvelope,
			EnvelopeHash:        res.SafetyEnvelopeHashSHA256,
			ProfileContractHash: res.ProfileContractHashSHA256,
			Receipt:             res.Receipt,
			PublicKeyPEM:        pubPEM,
		}
		if signedEnvelope != nil {
			params.DSSEEnvelope = *signedEnvelope
		}
		b, _, berr := bundle.Build(params)
		if berr != nil {
			fmt.Fprintf(stderr, "Error: building proof bundle: %v\n", berr)
			return 1
		}
		bdata, berr := bundle.Bytes(b)
		if berr != nil {
			fmt.Fprintf(stderr, "Error: serializing proof bundle: %v\n", berr)
			return 1
		}
		if werr := writeViaSink(ctx, receiptOutSink, receiptBundleOut, bdata); werr != nil {
			fmt.Fprintf(stderr, "Error: writing --receipt-bundle-out: %v\n", werr)
			return 1
		}
	}

	if !res.OK {
		return 2
	}
	return 0
}

// extractConfigFlag scans args for --config (or --config=value) ahead of
// the main flag.Parse pass, since the config file's own contents must be
// loaded before flag defaults are set, and flag.FlagSet has no notion of
// a flag that influences the defaults of the set doing the parsing.
func extractConfigFlag(args []string) string {
	for i, a := range args {
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
		if (a == "--config" || a == "-config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// applyConfigDefaults pre-fills flag defaults from a loaded config.Defaults
// document. Any flag explicitly passed on the command line still overrides
// it: cmd.Set sets the flag's current value, and the later cmd.Parse
// overwrites that value for every flag given on the command line.
func applyConfigDefaults(cmd *flag.FlagSet, d config.Defaults) {
	if d.Profile != "" {
		_ = cmd.Set("profile", d.Profile)
	}
	if d.Strict != nil && *d.Strict {
		_ = cmd.Set("strict", "true")
	}
	if d.AsOf != "" {
		_ = cmd.Set("as_of", d.AsOf)
	}
	if d.KappaWasm != "" {
		_ = cmd.Set("kappa-wasm", d.KappaWasm)
	}
	if d.ReceiptOutSink != "" {
		_ = cmd.Set("receipt-out-sink", d.ReceiptOutSink)
	}
}

// writeViaSink resolves the destination sink for uri. An explicit
// override scheme (from --receipt-out-sink or config) is prepended only
// when uri itself carries no scheme; otherwise uri's own scheme wins.
func writeViaSink(ctx context.Context, overrideScheme, uri string, data []byte) error {
	target := uri
	if overrideScheme != "" && !strings.Contains(uri, "://") {
		target = overrideScheme + "://" + uri
	}
	s, err := sink.Resolve(ctx, target)
	if err != nil {
		return err
	}
	return s.Write(ctx, target, data)
}

func parseEd25519PrivateKeyPEM(pemPath string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	data, err := os.ReadFile(pemPath)
	if err != nil {
		return nil, nil, err
	}
	priv, err := dsse.ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, nil, err
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("not an Ed25519 key")
	}
	return priv, pub, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "periodic <index_path> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Evaluate a Periodic System index against its bond rules and profiles.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "FLAGS:")
	fmt.Fprintln(w, "  --config <path>              YAML file of flag defaults")
	fmt.Fprintln(w, "  --strict                      treat warnings as failures")
	fmt.Fprintln(w, "  --profile <name>              profile to evaluate under")
	fmt.Fprintln(w, "  --as_of <YYYY-MM-DD>          evaluation reference date")
	fmt.Fprintln(w, "  --trace                       include explain-trace views in the report")
	fmt.Fprintln(w, "  --trace_hash_only             summary + hashes only, no detail")
	fmt.Fprintln(w, "  --report <path>               write a Markdown report")
	fmt.Fprintln(w, "  --out-json <path>             write the JSON report")
	fmt.Fprintln(w, "  --stdout-json                 write the JSON report to stdout")
	fmt.Fprintln(w, "  --quiet                       suppress the summary line")
	fmt.Fprintln(w, "  --receipt-out <path>          write the receipt JSON")
	fmt.Fprintln(w, "  --receipt-out-sink <scheme>   sink scheme for receipt/report/bundle writes")
	fmt.Fprintln(w, "  --receipt-dsse-out <path>     write a DSSE-signed receipt envelope")
	fmt.Fprintln(w, "  --receipt-dsse-key <pem>      Ed25519 private key for signing")
	fmt.Fprintln(w, "  --receipt-dsse-payloadType    DSSE payload type")
	fmt.Fprintln(w, "  --receipt-dsse-keyid <id>     caller-asserted key id")
	fmt.Fprintln(w, "  --receipt-dsse-verify         verify the envelope after signing")
	fmt.Fprintln(w, "  --receipt-dsse-pub <pem>      public key for --receipt-dsse-verify")
	fmt.Fprintln(w, "  --receipt-bundle-out <path>   write a proof bundle (canonical JSON)")
	fmt.Fprintln(w, "  --kappa-wasm <path>           external kappa canonicalizer module")
}
