package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/webhook-dispatcher/hooks"
)

/* validate-hooks - Standalone CLI tool to validate hooks.yaml
 * Usage: go run cmd/validate-hooks/main.go [hooks.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	// Get hooks file path from args or use default
	hooksFile := "hooks.yaml"
	if len(os.Args) > 1 {
		hooksFile = os.Args[1]
	}

	// Print validation header
	fmt.Printf("Validating hooks file: %s\n", hooksFile)
	fmt.Println(strings.Repeat("-", 50))

	// Create loader and attempt to load hooks
	loader := hooks.NewLoader()
	if err := loader.Load(hooksFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Success - print loaded hooks
	loadedHooks := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d hook(s):\n", len(loadedHooks))

	for i, hook := range loadedHooks {
		fmt.Printf("\n%d. Hook: %s\n", i+1, hook.ID)
		fmt.Printf("   URL:             %s\n", hook.URL)
		if len(hook.EventKinds) > 0 {
			fmt.Printf("   Event kinds:     %s\n", strings.Join(hook.EventKinds, ", "))
		} else {
			fmt.Printf("   Event kinds:     (all)\n")
		}
		fmt.Printf("   Expected Status: %d\n", hook.ExpectedStatus)
		fmt.Printf("   Signed:          %t\n", hook.SigningSecret != "")
		if len(hook.Headers) > 0 {
			fmt.Printf("   Headers:         %d\n", len(hook.Headers))
		}
	}

	fmt.Printf("\n✓ All hooks are valid!\n")
	os.Exit(0)
}
