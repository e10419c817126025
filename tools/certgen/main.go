// Package main generates the development CA and the HTTPS certificate of the
// reference backend, writing them into a directory (./certs by default).
//
// Usage:
//
//	certgen [-dir certs] [-hosts localhost,127.0.0.1] [-validity 8760h] [-ca-cert ca.crt -ca-key ca.key]
//
// With -ca-cert and -ca-key only a new server certificate is issued, signed
// by the existing CA.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/GlycoKeeper/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated host names and IPs of the server certificate")
	validity := fs.Duration("validity", 365*24*time.Hour, "certificate validity")
	caCert := fs.String("ca-cert", "", "existing CA certificate to sign with")
	caKey := fs.String("ca-key", "", "private key of the existing CA")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list := splitHosts(*hosts)
	if len(list) == 0 {
		return fmt.Errorf("no hosts given")
	}
	switch {
	case (*caCert == "") != (*caKey == ""):
		return fmt.Errorf("-ca-cert and -ca-key must be given together")
	case *caCert != "":
		if err := certgen.WriteServerCertificate(*dir, list, *validity, *caCert, *caKey); err != nil {
			return err
		}
	default:
		if err := certgen.WriteBundle(*dir, list, *validity); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "Certificates for %s generated into %s\n", strings.Join(list, ", "), *dir)
	return nil
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
