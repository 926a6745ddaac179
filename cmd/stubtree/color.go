package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stubtree/internal/driver"
	"stubtree/internal/stub"
)

var (
	errorColor = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	dimColor   = color.New(color.Faint)
	flagColor  = color.New(color.FgCyan)
	constColor = color.New(color.FgMagenta)
	pathColor  = color.New(color.Bold)
)

func setupColor(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "auto":
		color.NoColor = !isTerminal(os.Stdout) || os.Getenv("NO_COLOR") != ""
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	return nil
}

func kindColor(k stub.Kind) *color.Color {
	switch k {
	case stub.KindFile:
		return color.New(color.FgWhite, color.Bold)
	case stub.KindClass:
		return color.New(color.FgYellow, color.Bold)
	case stub.KindObject:
		return color.New(color.FgYellow)
	case stub.KindFunction:
		return color.New(color.FgGreen)
	case stub.KindProperty:
		return color.New(color.FgBlue)
	case stub.KindTypeAlias:
		return color.New(color.FgCyan)
	default:
		return color.New(color.Reset)
	}
}

func printError(w io.Writer, err error) {
	var fe *driver.FileError
	if errors.As(err, &fe) {
		_, _ = fmt.Fprintf(w, "%s %s: %s: %v\n", errorColor.Sprint("error:"), pathColor.Sprint(fe.Path), fe.Stage, fe.Err)
		return
	}
	_, _ = fmt.Fprintf(w, "%s %v\n", errorColor.Sprint("error:"), err)
}

func quiet(cmd *cobra.Command) bool {
	q, err := cmd.Root().PersistentFlags().GetBool("quiet")
	return err == nil && q
}
