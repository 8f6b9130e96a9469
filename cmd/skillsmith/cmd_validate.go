package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/smith-horn/skillsmith/internal/validator"
)

var validateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a skill document's structure and frontmatter",
	Long: `Checks a Markdown skill document for a minimum length, a top-level
heading, and (in strict mode) a required YAML frontmatter name. Reads from
the given file, or from stdin when no file is given.

validate never fails on an invalid document; it reports {valid, reasons}.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "require frontmatter name (strict mode)")
}

type validateResult struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	var content []byte
	if len(args) == 1 {
		content, err = os.ReadFile(args[0])
	} else {
		content, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read skill content: %w", err)
	}

	_, verr := validator.Validate(content, validatorOptions(cfg, validateStrict))
	result := validateResult{Valid: verr == nil}
	if verr != nil {
		result.Reasons = []string{verr.Error()}
	}

	if jsonOutput {
		return printJSON(result)
	}
	if result.Valid {
		fmt.Println("valid")
		return nil
	}
	fmt.Println("invalid:")
	for _, r := range result.Reasons {
		fmt.Printf("  - %s\n", r)
	}
	return nil
}
