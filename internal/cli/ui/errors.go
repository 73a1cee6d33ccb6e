package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/objectstore/internal/orm/crud"
	"github.com/conduit-lang/objectstore/internal/orm/identity"
	"github.com/conduit-lang/objectstore/internal/orm/query"
	"github.com/conduit-lang/objectstore/internal/orm/transaction"
)

// ErrorLevel represents the severity of an error message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized error message with help commands
//
// Example output:
//
//	❌ QUERY COMPILE ERROR: unknown field Company.colour
//
//	   → Check the model: objectstore ddl --model model.yml
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var headerColor, bodyColor *color.Color
	var symbol string

	switch opts.Level {
	case ErrorLevelWarning:
		headerColor = color.New(color.FgYellow, color.Bold)
		bodyColor = color.New(color.FgYellow)
		symbol = "⚠️"
	case ErrorLevelInfo:
		headerColor = color.New(color.FgCyan, color.Bold)
		bodyColor = color.New(color.FgCyan)
		symbol = "ℹ️"
	default:
		headerColor = color.New(color.FgRed, color.Bold)
		bodyColor = color.New(color.FgRed)
		symbol = "❌"
	}

	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if opts.Consequence != "" {
		b.WriteString("\n")
		bodyColor.Fprintf(&b, "   %s\n", opts.Consequence)
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		cyan := color.New(color.FgCyan)
		if opts.NoColor {
			cyan.DisableColor()
		}
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// DescribeError maps an object store error to its message options
func DescribeError(err error, noColor bool) ErrorOptions {
	opts := ErrorOptions{Level: ErrorLevelError, Problem: err.Error(), NoColor: noColor}

	switch {
	case query.IsQueryCompile(err):
		opts.Context = "query compile error"
		opts.HelpCommands = []string{"Check the model: objectstore ddl --model <model.yml>"}
	case query.IsExplainUnavailable(err):
		opts.Level = ErrorLevelWarning
		opts.Context = "explain unavailable"
	case errors.Is(err, transaction.ErrTransactionTimeout):
		opts.Context = "timeout"
		opts.Consequence = "The store call was rolled back."
		opts.HelpCommands = []string{"Raise query.timeout in objectstore.yml"}
	case query.IsExecution(err):
		opts.Context = "execution error"
		opts.Consequence = "Nothing was returned; the store was not modified."
	case identity.IsAmbiguousMatch(err):
		opts.Context = "ambiguous match"
		opts.Consequence = "More than one stored object matches; add example fields to tell them apart."
	case crud.IsStoreIntegrity(err):
		opts.Context = "store integrity violation"
		opts.Consequence = "The store call was rolled back."
	}
	return opts
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"View config: cat objectstore.yml",
			"Get help: objectstore --help",
		},
		NoColor: noColor,
	})
}
