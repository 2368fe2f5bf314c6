package format

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goatherd/ibex/aws"
)

var outputFormatters map[string]func(aws.Credential) (string, error) = map[string]func(aws.Credential) (string, error){
	"json": func(credential aws.Credential) (string, error) {
		data, err := json.Marshal(credential)

		return string(append(data, '\n')), err
	},
	"env": func(credential aws.Credential) (string, error) {
		output := bytes.Buffer{}

		for key, value := range aws.EnvironmentVariables(credential) {
			output.WriteString(fmt.Sprintf("export %s=%s\n", key, value))
		}

		return output.String(), nil
	},
}

func Credentials(format string, credential aws.Credential) (string, error) {
	return outputFormatters[format](credential)
}

func ValidateOutputFormat(format string) error {
	if validOutputFormat(format) {
		return nil
	}

	return fmt.Errorf("Invalid output format '%s' specified. Valid output formats: %v", format, validOutputFormats())
}

func validOutputFormat(format string) bool {
	for f := range outputFormatters {
		if format == f {
			return true
		}
	}

	return false
}

func validOutputFormats() []string {
	formats := make([]string, 0, len(outputFormatters))

	for format := range outputFormatters {
		formats = append(formats, format)
	}

	return formats
}
