package cmds

import (
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/timmy/pkg/pdf"
	"github.com/go-go-golems/timmy/pkg/settings"
	"github.com/spf13/viper"
)

func loadSettings() (*settings.Settings, error) {
	s, err := settings.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newExtractor(s *settings.Settings) *pdf.TextExtractor {
	return &pdf.TextExtractor{MaxBytes: s.MaxPDFBytes}
}

// promptFromArgs joins the arguments, or reads stdin when the only argument is "-".
func promptFromArgs(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

// OpenTTY opens the controlling terminal, so questions can be asked even when stdout
// is redirected.
func OpenTTY() (io.ReadWriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
