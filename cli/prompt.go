package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/gopasspw/pinentry"
	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/goatherd/ibex/okta"
)

func getLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	line = strings.Replace(line, "\n", "", -1)

	return line, err
}

func getPassword(description string) (string, error) {
	if viper.GetBool("pinentry") {
		return pinentryPassword(description)
	}

	fmt.Fprint(os.Stderr, "password: ")
	bytes, err := terminal.ReadPassword(int(syscall.Stdin))
	fmt.Fprint(os.Stderr, "\n")

	return string(bytes), err
}

func pinentryPassword(description string) (string, error) {
	pin, err := pinentry.New()

	if err != nil {
		return "", err
	}

	defer pin.Close()

	pin.Set("title", "ibex")
	pin.Set("desc", description)
	pin.Set("prompt", "Password:")

	password, err := pin.GetPin()

	return string(password), err
}

// confirm asks a yes/no question on stderr. An empty answer takes the
// default.
func confirm(question string, defaultYes bool) bool {
	suffix := "y/N"

	if defaultYes {
		suffix = "Y/n"
	}

	fmt.Fprintf(os.Stderr, "%s [%s]: ", question, suffix)
	answer, err := getLine()

	if err != nil || answer == "" {
		return defaultYes
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}

	return defaultYes
}

// chooseFactor presents the factor list and reads a selection.
// Unsupported factors are shown but selecting one is rejected upstream.
func chooseFactor(factors []okta.Factor) (int, error) {
	fmt.Fprintln(os.Stderr, "Available MFA factors:")

	for index, factor := range factors {
		fmt.Fprintf(os.Stderr, "  %d) %s\n", index+1, okta.FactorDisplayName(factor))
	}

	fmt.Fprint(os.Stderr, "Factor: ")
	answer, err := getLine()

	if err != nil {
		return 0, err
	}

	selection, err := strconv.Atoi(strings.TrimSpace(answer))

	if err != nil {
		return 0, fmt.Errorf("'%s' is not a factor number", answer)
	}

	return selection - 1, nil
}
