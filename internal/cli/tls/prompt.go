package tls

import (
	"bufio"
	"crypto/x509"
	"fmt"
	"io"
	"strings"

	"github.com/gitlab-mirror/mirrorauth/internal/cli/clicontext"
)

// Prompter decides whether an unknown certificate for host is trusted.
type Prompter func(host string, cert *x509.Certificate) bool

// TerminalPrompter describes the certificate on out and reads the answer
// from in. With --assumeyes set the certificate is accepted without asking.
func TerminalPrompter(in io.Reader, out io.Writer) Prompter {
	reader := bufio.NewReader(in)

	return func(host string, cert *x509.Certificate) bool {
		fmt.Fprintf(out, "\n")
		fmt.Fprintf(out, "WARNING: Unknown TLS certificate\n")
		fmt.Fprintf(out, "  Host:        %s\n", host)
		fmt.Fprintf(out, "  Subject:     %s\n", cert.Subject)
		fmt.Fprintf(out, "  Issuer:      %s\n", cert.Issuer)
		fmt.Fprintf(out, "  Valid From:  %s\n", cert.NotBefore)
		fmt.Fprintf(out, "  Valid Until: %s\n", cert.NotAfter)
		fmt.Fprintf(out, "  Fingerprint: %s\n", ComputeFingerprint(cert))
		fmt.Fprintf(out, "\n")

		if clicontext.AssumeYes() {
			fmt.Fprintf(out, "Automatically accepting certificate (--assumeyes flag is set)\n")
			return true
		}

		return promptYesNo(reader, out, "Do you want to accept this certificate?")
	}
}

// promptYesNo asks until it gets a yes or no. EOF counts as no.
func promptYesNo(reader *bufio.Reader, out io.Writer, question string) bool {
	for {
		fmt.Fprintf(out, "%s (yes/no): ", question)

		response, err := reader.ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))

		switch response {
		case "yes", "y":
			return true
		case "no", "n":
			return false
		}
		if err != nil {
			return false
		}
		fmt.Fprintf(out, "Please answer 'yes' or 'no'\n")
	}
}
