package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/macnak/simulant/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Validate a configuration file without serving it",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.Parse(content)
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			var verrs config.ValidationErrors
			if errors.As(err, &verrs) {
				for _, verr := range verrs {
					fmt.Fprintln(os.Stderr, verr.Error())
				}
				return fmt.Errorf("%d validation error(s)", len(verrs))
			}
			return err
		}
		fmt.Printf("valid: %d endpoint(s), %d window(s), %d burst(s)\n",
			len(cfg.Endpoints), len(cfg.BehaviorWindows), len(cfg.BurstEvents))
		return nil
	},
}
