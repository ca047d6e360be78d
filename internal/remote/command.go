package remote

import (
	"strings"
	"unicode"
)

// Command renders argv for the endpoint's remote shell. WSL endpoints run
// through `wsl.exe -e` so the argv reaches the Linux binary without an
// intermediate shell.
func Command(endpoint Endpoint, argv []string) string {
	switch {
	case endpoint.WSL():
		wrapped := append([]string{"wsl.exe", "-e"}, argv...)
		return WindowsQuote(wrapped)
	case strings.EqualFold(endpoint.Platform, "windows"):
		return WindowsQuote(argv)
	default:
		return ShellQuote(argv)
	}
}

// ShellQuote joins args for a POSIX shell, single-quoting anything that is not
// a plain word.
func ShellQuote(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if strings.IndexFunc(arg, needsShellQuote) < 0 {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func needsShellQuote(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return false
	}
	switch r {
	case '-', '_', '.', '/', ':', ',', '=', '+', '@', '%':
		return false
	}
	return true
}

// WindowsQuote joins args using the CommandLineToArgvW conventions that the
// Windows OpenSSH server and wsl.exe parse.
func WindowsQuote(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = windowsQuoteArg(arg)
	}
	return strings.Join(quoted, " ")
}

func windowsQuoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if !strings.ContainsAny(arg, " \t\"") {
		return arg
	}
	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for _, r := range arg {
		switch r {
		case '\\':
			slashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, slashes*2+1))
			b.WriteByte('"')
			slashes = 0
			continue
		default:
			b.WriteString(strings.Repeat(`\`, slashes))
			slashes = 0
			b.WriteRune(r)
			continue
		}
	}
	b.WriteString(strings.Repeat(`\`, slashes*2))
	b.WriteByte('"')
	return b.String()
}
