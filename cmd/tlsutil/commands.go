package main

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vyrodovalexey/tlsutil/internal/buffer"
	"github.com/vyrodovalexey/tlsutil/internal/observability"
	"github.com/vyrodovalexey/tlsutil/internal/tls"
)

const readChunkSize = 32 * 1024

// input is a named payload read from a file or stdin.
type input struct {
	name string
	data *buffer.Buffer
}

// readInputs reads every named file, or stdin when none is given. Each read
// becomes its own buffer slice.
func (a *app) readInputs(paths []string) ([]input, error) {
	if len(paths) == 0 {
		data, err := readBuffer(a.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []input{{name: "-", data: data}}, nil
	}

	inputs := make([]input, 0, len(paths))
	for _, path := range paths {
		data, err := readFileBuffer(path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input{name: path, data: data})
	}
	return inputs, nil
}

func readFileBuffer(path string) (*buffer.Buffer, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := readBuffer(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func readBuffer(r io.Reader) (*buffer.Buffer, error) {
	buf := &buffer.Buffer{}
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		buf.Add(chunk[:n])
		if errors.Is(err, io.EOF) {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// runDigest prints "<hex>  <name>" for each input.
func runDigest(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("digest", "[file ...]")
	if err := parse(fs, args); err != nil {
		return err
	}

	_, span := a.tracer.StartSpan(ctx, "tlsutil.digest")
	defer span.End()

	inputs, err := a.readInputs(fs.Args())
	if err != nil {
		return err
	}
	for _, in := range inputs {
		fmt.Fprintf(a.stdout, "%s  %s\n", hex.EncodeToString(tls.SHA256Digest(in.data)), in.name)
	}
	return nil
}

// runHMAC prints "<hex>  <name>" for each input, keyed by -key or -key-file.
func runHMAC(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("hmac", "(-key key | -key-file file) [file ...]")
	key := fs.String("key", "", "HMAC key")
	keyFile := fs.String("key-file", "", "file holding the HMAC key")
	if err := parse(fs, args); err != nil {
		return err
	}

	var keyBytes []byte
	switch {
	case *key != "" && *keyFile != "":
		fmt.Fprintln(a.stderr, "hmac: -key and -key-file are mutually exclusive")
		return errUsage
	case *keyFile != "":
		data, err := os.ReadFile(*keyFile)
		if err != nil {
			return fmt.Errorf("failed to read key file: %w", err)
		}
		keyBytes = data
	default:
		keyBytes = []byte(*key)
	}

	_, span := a.tracer.StartSpan(ctx, "tlsutil.hmac")
	defer span.End()

	inputs, err := a.readInputs(fs.Args())
	if err != nil {
		return err
	}
	for _, in := range inputs {
		fmt.Fprintf(a.stdout, "%s  %s\n", hex.EncodeToString(tls.SHA256HMAC(keyBytes, in.data.Bytes())), in.name)
	}
	return nil
}

// runInspect prints the identity fields of every certificate in the given
// PEM files.
func runInspect(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("inspect", "[-json] file ...")
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	infos := make([]*tls.CertificateInfo, 0, fs.NArg())
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		certs, err := tls.ParsePEMCertificates(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, cert := range certs {
			a.traceCertificate(ctx, cert)
			infos = append(infos, tls.ExtractCertificateInfo(cert, a.clock))
		}
	}

	if *asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		printCertificateInfo(a.stdout, info)
	}
	return nil
}

func (a *app) traceCertificate(ctx context.Context, cert *x509.Certificate) {
	_, span := a.tracer.StartSpan(ctx, "tlsutil.inspect")
	tls.AnnotateSpan(span, cert, a.clock)
	span.End()

	a.logger.Debug("inspected certificate", tls.PeerLogFields(cert)...)
}

func printCertificateInfo(w io.Writer, info *tls.CertificateInfo) {
	fmt.Fprintf(w, "subject:               %s\n", info.Subject)
	fmt.Fprintf(w, "issuer:                %s\n", info.Issuer)
	fmt.Fprintf(w, "serial:                %s\n", info.SerialNumber)
	fmt.Fprintf(w, "fingerprint:           %s\n", info.Fingerprint)
	fmt.Fprintf(w, "not before:            %s\n", info.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(w, "not after:             %s\n", info.NotAfter.Format(time.RFC3339))
	fmt.Fprintf(w, "days until expiration: %d\n", info.DaysUntilExpiration)
	printNames(w, "dns", info.DNSNames)
	printNames(w, "uri", info.URIs)
	printNames(w, "email", info.EmailAddresses)
	printNames(w, "ip", info.IPAddresses)
}

func printNames(w io.Writer, label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(w, "%-22s %s\n", label+":", strings.Join(names, ", "))
}

// runVerify checks a signature over the input with a public key read from a
// PEM, DER or JWK file.
func runVerify(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("verify", "-key file (-signature file | -signature-hex hex) [-hash sha256] [file]")
	keyFile := fs.String("key", "", "public key file (PEM, DER or JWK)")
	hashName := fs.String("hash", "sha256", "digest algorithm ("+strings.Join(tls.SupportedHashNames(), ", ")+")")
	sigFile := fs.String("signature", "", "file holding the raw signature")
	sigHex := fs.String("signature-hex", "", "signature as hex")
	textfile := fs.String("textfile", "", "write verification metrics to this Prometheus textfile")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *keyFile == "" || (*sigFile == "") == (*sigHex == "") || fs.NArg() > 1 {
		fs.Usage()
		return errUsage
	}

	keyData, err := os.ReadFile(*keyFile)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	key := importPublicKey(keyData)

	signature, err := readSignature(*sigFile, *sigHex)
	if err != nil {
		return err
	}

	inputs, err := a.readInputs(fs.Args())
	if err != nil {
		return err
	}
	message := inputs[0].data.Bytes()

	ctx, span := a.tracer.StartSpan(ctx, "tlsutil.verify")
	defer span.End()

	result := tls.VerifySignature(*hashName, key, signature, message)

	span.SetAttributes(
		attribute.String("tls.signature.hash", *hashName),
		attribute.String("tls.signature.key_algorithm", key.Algorithm()),
		attribute.String("tls.signature.status", result.Status.String()),
	)

	if *textfile != "" {
		if err := writeVerificationMetrics(*textfile, a.config.Metrics.Namespace, *hashName, result); err != nil {
			a.logger.Warn("failed to write metrics textfile", observability.String("path", *textfile), observability.Error(err))
		}
	}

	if result.OK {
		span.SetStatus(codes.Ok, "")
		fmt.Fprintln(a.stdout, "OK")
		return nil
	}

	span.SetStatus(codes.Error, result.Message)
	a.logger.WithContext(ctx).Debug("signature verification failed",
		observability.String("hash", *hashName),
		observability.String("status", result.Status.String()),
		observability.Int("code", result.Code),
	)
	fmt.Fprintf(a.stdout, "FAILED: %s\n", result.Message)
	return &exitError{code: exitFailure}
}

// importPublicKey detects the key encoding: a JSON object is a JWK, a
// "-----BEGIN" marker is PEM, anything else is DER. It returns nil when the
// key cannot be imported.
func importPublicKey(data []byte) *tls.PublicKey {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("{")):
		return tls.ImportPublicKeyJWK(trimmed)
	case bytes.Contains(trimmed, []byte("-----BEGIN")):
		return tls.ImportPublicKeyPEM(trimmed)
	default:
		return tls.ImportPublicKey(data)
	}
}

func readSignature(file, hexValue string) ([]byte, error) {
	if file != "" {
		data, err := os.ReadFile(file) //nolint:gosec // path comes from the command line
		if err != nil {
			return nil, fmt.Errorf("failed to read signature: %w", err)
		}
		return data, nil
	}
	data, err := hex.DecodeString(strings.TrimSpace(hexValue))
	if err != nil {
		return nil, fmt.Errorf("invalid -signature-hex: %w", err)
	}
	return data, nil
}

// writeVerificationMetrics writes the verification counter in the textfile
// collector format.
func writeVerificationMetrics(path, namespace, hashName string, result tls.VerificationResult) error {
	registry := prometheus.NewRegistry()
	metrics := tls.NewMetrics(namespace, tls.WithRegistry(registry))
	metrics.Init()
	metrics.RecordSignatureVerification(strings.ToLower(hashName), result.Status)
	return prometheus.WriteToTextfile(path, registry)
}
