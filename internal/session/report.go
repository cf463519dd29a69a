package session

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mdp/qrterminal/v3"
	"golang.org/x/term"

	"github.com/kyleqiq/react2app/internal/network"
)

const expoGoURL = "https://expo.dev/expo-go"

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Bold(true).Width(5)
	urlStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
)

// Reporter prints where the servers are and how to open the app.
type Reporter struct {
	Out io.Writer
	// DeepLinkScheme is the app server's scheme for phones, empty for none.
	DeepLinkScheme string
	// QR renders the deep link as a QR code instead of plain text.
	QR bool
}

// NewReporter writes to out and draws a QR code only when out is a terminal.
func NewReporter(out io.Writer, deepLinkScheme string) *Reporter {
	return &Reporter{
		Out:            out,
		DeepLinkScheme: deepLinkScheme,
		QR:             IsTerminal(out),
	}
}

// Print writes the status block for both addresses in a single write, so
// server output sharing the writer cannot land inside it.
func (r *Reporter) Print(web, app network.ServerAddress) {
	var b bytes.Buffer
	lines := []string{
		"🚀 Server is running at:",
		"",
		labelStyle.Render("Web:") + " " + urlStyle.Render(web.URL()),
		labelStyle.Render("App:") + " " + urlStyle.Render(app.URL()),
	}
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, boxStyle.Render(strings.Join(lines, "\n")))

	if r.DeepLinkScheme == "" {
		fmt.Fprintln(&b)
	} else {
		link := DeepLink(app, r.DeepLinkScheme)
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "📱 Download 'Expo Go' app and scan the QR code below")
		fmt.Fprintf(&b, "💡 App not installed? Get it at %s\n", expoGoURL)
		fmt.Fprintln(&b)
		if r.QR {
			qrterminal.GenerateHalfBlock(link, qrterminal.L, &b)
		}
		fmt.Fprintf(&b, "   %s\n\n", link)
	}

	r.Out.Write(b.Bytes())
}

// DeepLink renders the address a phone opens, e.g. exp://192.168.1.20:8081.
func DeepLink(app network.ServerAddress, scheme string) string {
	return app.WithScheme(scheme).URL()
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
