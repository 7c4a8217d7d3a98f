package shell

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.trai.ch/devshell/internal/core/domain"
	"go.trai.ch/zerr"
)

// Format selects how an environment is rendered.
type Format string

// Render formats.
const (
	FormatExport Format = "export"
	FormatJSON   Format = "json"
	FormatDotenv Format = "dotenv"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatExport, FormatJSON, FormatDotenv:
		return f, nil
	default:
		return "", zerr.With(zerr.Wrap(domain.ErrUnknownFormat, "parse format"), "format", s)
	}
}

// Render writes env in the given format.
//
// export is POSIX shell meant for eval; dotenv uses ${PATH} expansion for the search path.
func Render(w io.Writer, env *domain.ShellEnvironment, format Format) error {
	var err error
	switch format {
	case FormatExport:
		err = renderExport(w, env)
	case FormatDotenv:
		err = renderDotenv(w, env)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(env)
	default:
		return zerr.With(zerr.Wrap(domain.ErrUnknownFormat, "render environment"), "format", string(format))
	}
	if err != nil {
		return zerr.Wrap(err, "failed to render environment")
	}
	return nil
}

func renderExport(w io.Writer, env *domain.ShellEnvironment) error {
	var b strings.Builder
	fmt.Fprintf(&b, "export PATH=%s\"${PATH:+:$PATH}\"\n", quote(env.PathValue("")))
	for _, v := range env.Vars {
		fmt.Fprintf(&b, "export %s=%s\n", v.Key, quote(v.Value))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderDotenv(w io.Writer, env *domain.ShellEnvironment) error {
	var b strings.Builder
	fmt.Fprintf(&b, "PATH=%q\n", env.PathValue("")+domain.PathListSeparator+"${PATH}")
	for _, v := range env.Vars {
		fmt.Fprintf(&b, "%s=%q\n", v.Key, v.Value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// quote single-quotes s for POSIX shells.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
